package stub

import (
	"math/rand"
	"regexp"
	"strings"

	"askmom/internal/core"
	"askmom/internal/risk"
	"askmom/internal/textnorm"
)

// The greeting detector errs toward catching greetings: an empty message,
// a greeting token, an opener phrase, or plain low-signal input all land
// here rather than in a playbook.

var greetingTokens = map[string]struct{}{}

func init() {
	for _, g := range []string{
		"hi", "hello", "hey", "heyy", "heyyy", "hii", "hiii", "yo", "sup",
		"wassup", "wazzup", "howdy",
		"hola", "buenas", "buen dia", "buenos dias", "buenas tardes", "buenas noches",
		"que onda", "oi", "ayy", "ey", "eyy",
		"saludos",
	} {
		greetingTokens[g] = struct{}{}
	}
}

var openerPhrases = []*regexp.Regexp{
	regexp.MustCompile(`^can you help( me)?\??$`),
	regexp.MustCompile(`^help( me)?\??$`),
	regexp.MustCompile(`^are you there\??$`),
	regexp.MustCompile(`^you there\??$`),
	regexp.MustCompile(`^hi+\b`),
	regexp.MustCompile(`^hey+\b`),
	regexp.MustCompile(`^hello+\b`),
	regexp.MustCompile(`^hola+\b`),
	regexp.MustCompile(`^yo+\b`),
	regexp.MustCompile(`^sup\b`),
	regexp.MustCompile(`^wass?up\b`),
	regexp.MustCompile(`^what's up\b`),
	regexp.MustCompile(`^good (morning|afternoon|evening)\b`),
}

// isGreeting reports whether the message should take the greeting path.
// High-risk hints always win: "hi, they want gift cards" is not a greeting.
func isGreeting(raw string) bool {
	t := textnorm.NormalizeLoose(raw)

	if t == "" {
		return true
	}
	// The broad risk vocabulary, not just the trigger list: "hi, they
	// want a refund" must not read as a greeting.
	if textnorm.ContainsAny(textnorm.Normalize(raw), risk.Vocabulary()) {
		return false
	}

	if tokenGreeting(t) {
		return true
	}
	for _, rx := range openerPhrases {
		if rx.MatchString(t) {
			return true
		}
	}
	return lowSignal(raw, t)
}

func tokenGreeting(t string) bool {
	first, _, _ := strings.Cut(t, " ")
	if _, ok := greetingTokens[first]; ok {
		return true
	}
	for g := range greetingTokens {
		if t == g || strings.HasPrefix(t, g+" ") {
			return true
		}
	}
	return false
}

// lowSignal catches messages too short or too garbled to carry intent:
// keyboard mash, emoji-only input, one or two words.
func lowSignal(raw, normalized string) bool {
	if len(normalized) <= 4 {
		return true
	}
	words := strings.Fields(normalized)
	if len(normalized) <= 16 && len(words) <= 2 {
		return true
	}
	if mostlyNonAlnum(raw) {
		return true
	}

	if len(normalized) <= 44 {
		if len(words) <= 6 && keyboardMash(normalized) {
			return true
		}
		if len(words) <= 3 {
			return true
		}
	}
	return false
}

// mostlyNonAlnum reports an alphanumeric density below 20% in the raw text.
func mostlyNonAlnum(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	total, alnum := 0, 0
	for _, r := range raw {
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alnum++
		}
	}
	return float64(alnum)/float64(total) < 0.20
}

// keyboardMash flags alphabetic runs of 4+ letters with a vowel ratio
// below 20%.
func keyboardMash(t string) bool {
	letters, vowels := 0, 0
	for _, r := range t {
		if r >= 'a' && r <= 'z' {
			letters++
			switch r {
			case 'a', 'e', 'i', 'o', 'u':
				vowels++
			}
		}
	}
	if letters < 4 {
		return false
	}
	return float64(vowels)/float64(letters) < 0.20
}

// ---------------------------------------------------------------------
// Greeting variation pools
// ---------------------------------------------------------------------

var greetingOpeners = []string{
	"Hey - Mom's Computer here.",
	"Hi. Mom's Computer checking in.",
	"Alright, I'm here. Mom's Computer.",
	"Yo - Mom's Computer on deck.",
	"Okay. Talk to me - Mom's Computer.",
	"Alright - what's the situation?",
	"Hey there - what happened?",
	"Hi hi. What are we dealing with?",
	"Alright, I've got you.",
	"Yo. You're safe with me - what's up?",
	"Hey. Let's handle this together.",
	"Okay - deep breath. What's going on?",
	"Mom's Computer. I'm listening.",
	"Alright - start from the top for me.",
	"Hey - tell me what you're seeing.",
	"Hi. What's acting up today?",
	"Okay - what's the screen yelling at you?",
	"Hey - what were you trying to do?",
	"Alright, we can fix this.",
}

var guardRemarks = []string{
	"We're gonna do this the safe way.",
	"We're not clicking random buttons today.",
	"Nobody's taking your money on my watch.",
	"We keep it simple, calm, and safe.",
	"I've seen this movie before. We're not falling for it.",
	"If it smells weird, we pause. Period.",
	"No rushing. Rushing is how people get scammed.",
	"We're not 'confirming' anything until we know what it is.",
	"We don't trust pop-ups that shout.",
	"If something is urgent, it'll still be urgent in 30 seconds.",
	"We're gonna verify first, then move.",
	"I'm friendly, but I'm not gullible. Neither are you.",
	"We don't do panic-clicking in this house.",
	"We go slow so you don't pay twice - money or stress.",
	"We're not handing strangers the keys to your phone.",
	"If it's legit, it can wait for one good question.",
	"We don't install anything until we know what it is.",
	"You're not bothering me - this is what I'm for.",
	"Let's get you unstuck without any nonsense.",
}

var safetyReminders = []string{
	"Quick rule: no passwords, no login codes, no gift cards.",
	"Rule #1: don't share codes or passwords. Ever.",
	"If anyone asks for money, codes, or remote access - stop and tell me.",
	"If a pop-up is yelling at you, we slow down and verify.",
	"Never read a 6-digit code out loud to anyone. That code is for *you*.",
	"No bank info. No SSN. No 'verify your identity' surprises.",
	"If someone pressures you, that's a red flag. Period.",
	"If they say 'don't hang up' - hang up.",
	"If they want you to install an app to 'fix it' - pause and tell me.",
	"We don't send money to 'unlock' devices. That's not a thing.",
	"If it's a 'refund' situation, it's often a scam. We check first.",
	"If the message creates panic, we treat it as suspicious until proven otherwise.",
}

var firstQuestions = []string{
	"What are you looking at right now on the screen?",
	"Tell me what you see - exact words if you can.",
	"What did you click right before it got weird?",
	"What are you trying to do - pay a bill, reset a password, log in?",
	"What device is it - iPhone, Android, Windows, or Mac?",
	"Is this happening in an app, a website, email, or a pop-up?",
	"Did this start after you opened a link or attachment?",
	"Are you at home on Wi-Fi or using cellular data?",
	"Is it asking you to 'Allow', 'Install', 'Verify', or 'Call a number'?",
	"Did someone contact you first, or did this appear by itself?",
	"What's the one thing you want to accomplish right now?",
	"Are you locked out, or is it just acting slow/weird?",
	"Is it one device or multiple devices having the issue?",
	"Are you seeing an error code or just a message?",
	"Does it look like a warning from Apple/Google/Microsoft - or just a random page?",
	"Are there any buttons? Tell me the button words.",
}

var regionalFlavor = []string{
	"Alright - SoCal rules: verify first, then move.",
	"We're keeping it calm - like a Sunday in Bellflower.",
	"No stress. We'll handle it - LA style: patient, sharp, and safe.",
	"We're not letting some random pop-up run the neighborhood.",
	"Okay - slow is smooth, smooth is fast. That's the LA way.",
	"We got you. Community care energy.",
	"We protect our elders out here. That includes you.",
}

var greetingStepPool = []string{
	"What device is it (iPhone/Android/Mac/Windows)?",
	"What app or website are you in?",
	"What were you trying to do right before this happened?",
	"Copy/paste the message you see (or describe it).",
	"Is anyone asking for money, gift cards, codes, passwords, or remote access?",
	"Did this come from an email, a text, a phone call, or a pop-up?",
	"If a button says 'Allow' / 'Install' / 'Download', don't tap yet - tell me what it says.",
	"If it's a password reset, tell me *where* the reset request came from.",
	"If you can, take a screenshot (don't include passwords) and describe what's highlighted.",
	"Tell me if it says 'urgent', 'security', 'locked', or 'infected'. Exact words matter.",
	"What time did it start and has it happened before?",
	"Did you recently install anything new?",
	"Are you on Wi-Fi right now? If yes, which network name?",
	"Are there any phone numbers on the screen? Tell me the numbers (don't call them yet).",
	"If you see a browser tab name, tell me that too.",
	"Tell me what the top of the screen says (app name / website).",
}

// summaryTemplates are sentence orderings for the greeting summary. The
// placeholders are opener (O), guard remark (G), safety reminder (S), and
// first question (Q).
var summaryTemplates = [][]string{
	{"O", "G", "S", "Q"},
	{"O", "Q", "G", "S"},
	{"O", "G", "Q"},
	{"O", "S", "Q"},
	{"O", "G", "Q", "S"},
	{"O", "Q", "S"},
	{"O", "Q", "G"},
}

var emoji = []string{"🙂", "👍", "🧠", "🛡️", "✅", "💬", "🔒"}

// greetingReply builds the seeded-random greeting response: opener + tone
// remark + safety reminder + one follow-up question, plus a shuffled set
// of generic follow-up steps.
func greetingReply(r *rand.Rand) *core.StructuredReply {
	opener := pick(r, greetingOpeners)
	guard := pick(r, guardRemarks)
	safety := pick(r, safetyReminders)
	question := pick(r, firstQuestions)

	if r.Float64() < 0.22 {
		guard = guard + " " + pick(r, regionalFlavor)
	}

	parts := map[string]string{"O": opener, "G": guard, "S": safety, "Q": question}
	template := summaryTemplates[r.Intn(len(summaryTemplates))]

	pieces := make([]string, 0, len(template))
	for _, k := range template {
		pieces = append(pieces, parts[k])
	}
	summary := strings.Join(pieces, " ")

	if r.Float64() < 0.18 {
		summary = summary + " " + pick(r, emoji)
	}

	steps := shuffleTake(r, greetingStepPool, 3, 6)
	if r.Float64() < 0.55 {
		steps = append(steps, "If you can, type the *exact* words you see. One line at a time is fine.")
	}
	if r.Float64() < 0.25 {
		steps = append(steps, "And don't worry - this stuff is confusing on purpose sometimes. We'll sort it out.")
	}

	return &core.StructuredReply{
		RiskLevel:     core.RiskLow,
		Summary:       summary,
		Steps:         steps,
		Confidence:    0.92,
		Model:         ModelName,
		PromptVersion: "v4_greeting_variants",
	}
}
