package stub

import (
	"math/rand"
	"strings"

	"askmom/internal/core"
)

// Intent names a troubleshooting playbook.
type Intent string

const (
	IntentWifi               Intent = "wifi"
	IntentPasswordReset      Intent = "password_reset"
	IntentEmailHacked        Intent = "email_hacked"
	IntentStorageFull        Intent = "storage_full"
	IntentPrinter            Intent = "printer"
	IntentDeviceSlow         Intent = "device_slow"
	IntentPopupScammy        Intent = "popup_scammy"
	IntentSubscriptionCharge Intent = "subscription_charge"
)

// intentOrder fixes the priority: the first matching intent wins.
var intentOrder = []Intent{
	IntentWifi,
	IntentPasswordReset,
	IntentEmailHacked,
	IntentStorageFull,
	IntentPrinter,
	IntentDeviceSlow,
	IntentPopupScammy,
	IntentSubscriptionCharge,
}

var intentTokens = map[Intent][]string{
	IntentWifi: {
		"wifi", "wi-fi", "internet", "no internet", "offline", "router", "modem",
		"connected no internet", "cant connect", "can't connect", "won't connect",
	},
	IntentPasswordReset: {
		"forgot password", "reset password", "password reset", "can't log in", "cant log in",
		"locked out", "account locked", "wrong password",
	},
	IntentEmailHacked: {
		"hacked", "someone logged in", "unrecognized login", "suspicious sign-in",
		"email hacked", "my email was hacked", "someone changed my password",
	},
	IntentStorageFull: {
		"storage full", "icloud full", "not enough storage", "low storage",
		"out of space", "space is full", "cannot download",
	},
	IntentPrinter: {
		"printer", "won't print", "wont print", "printing", "paper jam",
		"offline printer", "printer offline",
	},
	IntentDeviceSlow: {
		"slow", "lag", "freezing", "frozen", "crashing", "keeps closing",
		"spinning", "stuck", "unresponsive",
	},
	IntentPopupScammy: {
		"pop up", "popup", "virus", "infected", "call this number", "security alert",
		"your computer is infected", "microsoft warning", "apple warning",
	},
	IntentSubscriptionCharge: {
		"charged", "charge", "subscription", "bill", "refund", "invoice",
		"renewal", "trial", "cancel",
	},
}

// detectIntent matches loosely-normalized text against the token lists in
// priority order. Returns empty when nothing matches.
func detectIntent(t string) Intent {
	for _, intent := range intentOrder {
		for _, tok := range intentTokens[intent] {
			if strings.Contains(t, tok) {
				return intent
			}
		}
	}
	return ""
}

var playbookOpeners = []string{
	"Okay - this one's common. We got it.",
	"Alright. I know this type of problem.",
	"Yep, seen it. Let's fix it without making it worse.",
	"Cool. We can handle this - step by step.",
	"Okay - no panic. We'll untangle it.",
	"Alright. I'm on your side. Let's get you unstuck.",
}

var playbookRemarks = []string{
	"We're not doing guess-clicking.",
	"We're doing clean steps, not chaos.",
	"No rushing. Rushing breaks stuff.",
	"We verify first, then we tap.",
	"If anything asks for codes or remote access, we stop.",
	"I'm friendly, but I don't trust random prompts.",
}

var deviceQuestions = []string{
	"Quick: iPhone, Android, Windows, or Mac?",
	"What device are you on - phone or computer?",
	"What kind of phone/computer is it?",
	"Is this on your phone, laptop, or tablet?",
}

var extraLines = []string{
	"If you can, paste the exact wording. Exact words matter.",
	"If you're not sure, describe it like you're describing a photo to me.",
	"Tell me what the buttons say - those words are clues.",
	"One thing at a time. You're doing fine.",
}

// playbook holds one intent's fixed material. Summary lines may reference
// the shared pools via the marker entries below.
type playbook struct {
	summaryLines  []string
	steps         []string
	promptVersion string
	escalate      bool
	confidence    float64
}

// Summary-line markers resolved per response.
const (
	lineOpener = "\x00opener"
	lineRemark = "\x00remark"
	lineDevice = "\x00device"
)

var playbooks = map[Intent]playbook{
	IntentWifi: {
		summaryLines: []string{
			lineOpener, lineRemark,
			"Let's figure out if it's your device, the Wi-Fi, or the internet itself.",
			lineDevice,
		},
		steps: []string{
			"Are other devices on the same Wi-Fi working (another phone/TV)?",
			"Look at the Wi-Fi icon - does it say connected but 'No Internet'?",
			"Restart: unplug modem/router for 20 seconds, plug back in, wait 2-3 minutes.",
			"If you're on a phone, toggle Airplane Mode on/off once.",
			"Forget the Wi-Fi network and re-join (only if you know the password).",
			"If you're using a cable modem, check if the modem 'Online' light is solid.",
		},
		promptVersion: "v1_wifi_playbook",
		confidence:    0.88,
	},
	IntentPasswordReset: {
		summaryLines: []string{
			lineOpener, lineRemark,
			"Password resets are where scams hide, so we do it clean.",
			"Which account is it - email, bank, Apple ID, Google, Facebook?",
		},
		steps: []string{
			"Tell me the *exact* app/site name you're logging into.",
			"Did *you* request a reset, or did a message tell you to reset?",
			"Only reset from the official app or official website (typed manually). Don't use random links.",
			"If you can't log in: try 'Forgot Password' and check your email for the reset message.",
			"If it asks for a code, that code should come to *you* (text/email). Don't share it with anyone.",
			"If you keep getting 'wrong password', confirm Caps Lock and try the last password you remember once - then stop.",
		},
		promptVersion: "v1_password_reset_playbook",
		confidence:    0.88,
	},
	IntentEmailHacked: {
		summaryLines: []string{
			"Alright - if this is a real hack, we move fast and smart.",
			lineRemark,
			"We lock it down first, then clean up.",
			"Which email is it (Gmail, Yahoo, Outlook, iCloud)?",
		},
		steps: []string{
			"Change the email password *from the official site/app*.",
			"Turn on 2-factor authentication (2FA) after you change the password.",
			"Check 'Security' / 'Devices' / 'Recent activity' and sign out of devices you don't recognize.",
			"Check forwarding rules: hackers love auto-forwarding your emails.",
			"If recovery email/phone was changed, change it back right away.",
			"If your bank is tied to this email, watch for password reset emails and alerts.",
		},
		promptVersion: "v1_email_hacked_playbook",
		escalate:      true,
		confidence:    0.93,
	},
	IntentStorageFull: {
		summaryLines: []string{
			lineOpener,
			"Storage full is annoying, but fixable.",
			lineRemark,
			"Are you seeing 'iCloud Storage Full' or 'Device Storage Full'?",
		},
		steps: []string{
			"Tell me the device type (iPhone/Android) and whether it's iCloud/Google Photos.",
			"Delete large videos first (they're usually the big culprit).",
			"Clear 'Recently Deleted' photos/videos (otherwise they still take space).",
			"Uninstall apps you don't use (you can reinstall later).",
			"If it's cloud storage: consider upgrading *or* turn off photo backup temporarily.",
			"Restart after cleanup - sometimes the storage number updates late.",
		},
		promptVersion: "v1_storage_playbook",
		confidence:    0.88,
	},
	IntentPrinter: {
		summaryLines: []string{
			lineOpener,
			"Printers are... spiritually difficult.",
			lineRemark,
			"But we can usually fix it in a few checks.",
		},
		steps: []string{
			"Is it printing from a phone or from a computer?",
			"Does the printer screen say 'Offline' or show an error?",
			"Power cycle printer: off 10 seconds, back on.",
			"If it's a Wi-Fi printer: confirm printer is on the same Wi-Fi network as the device.",
			"Check paper + ink/toner + any jam door open.",
			"If it's a Windows computer: remove the printer and re-add it (last resort).",
		},
		promptVersion: "v1_printer_playbook",
		confidence:    0.88,
	},
	IntentDeviceSlow: {
		summaryLines: []string{
			lineOpener, lineRemark,
			"Slow can be storage, too many apps, bad Wi-Fi, or an update stuck.",
			lineDevice,
		},
		steps: []string{
			"Restart the device once (simple, but it works).",
			"Close extra apps/tabs - especially browsers.",
			"Check storage: if it's near full, performance drops.",
			"Check for system updates (but don't install random 'cleaner' apps).",
			"If it only happens on one site/app, tell me which one.",
			"If it heats up a lot, let it cool down - heat makes everything slow.",
		},
		promptVersion: "v1_slow_device_playbook",
		confidence:    0.88,
	},
	IntentPopupScammy: {
		summaryLines: []string{
			"Stop - don't click anything on that pop-up yet.",
			lineRemark,
			"If it says 'call now' or 'infected', that's usually scammy.",
			"Tell me the exact words and whether there's a phone number on screen.",
		},
		steps: []string{
			"Do NOT call any number on the pop-up.",
			"Close the browser tab/app. If it won't close, force quit the browser.",
			"If on Windows: open Task Manager and end the browser task.",
			"After closing: reopen browser and clear recent browsing data for the last hour/day.",
			"If it keeps coming back, tell me what browser (Chrome/Safari/Edge) and we'll remove extensions.",
			"If you installed anything because of it, tell me what it was.",
		},
		promptVersion: "v1_popup_playbook",
		escalate:      true,
		confidence:    0.94,
	},
	IntentSubscriptionCharge: {
		summaryLines: []string{
			lineOpener, lineRemark,
			"Charges/subscriptions can be legit OR a trap - so we verify.",
			"Is this Apple, Google, Amazon, bank statement, or an email invoice?",
		},
		steps: []string{
			"Tell me where you saw the charge (bank app, email, text, inside an app).",
			"If it's email: don't click links - open your bank/app store directly.",
			"Check subscriptions in Apple ID / Google Play (official settings).",
			"If you don't recognize it: mark it, don't pay via links, and contact the bank/app store from official numbers.",
			"If it's a trial renewal: cancel in subscriptions and ask for refund through official support.",
			"If it's a 'refund department' calling you - assume scam until proven otherwise.",
		},
		promptVersion: "v1_subscription_playbook",
		escalate:      true,
		confidence:    0.90,
	},
}

// playbookReply renders one intent's playbook with seeded variation.
func playbookReply(intent Intent, r *rand.Rand) *core.StructuredReply {
	pb, ok := playbooks[intent]
	if !ok {
		return nil
	}

	lines := make([]string, 0, len(pb.summaryLines))
	for _, line := range pb.summaryLines {
		switch line {
		case lineOpener:
			lines = append(lines, pick(r, playbookOpeners))
		case lineRemark:
			lines = append(lines, pick(r, playbookRemarks))
		case lineDevice:
			lines = append(lines, pick(r, deviceQuestions))
		default:
			lines = append(lines, line)
		}
	}
	summary := strings.Join(lines, " ")

	if r.Float64() < 0.18 {
		summary = summary + " (We'll do it clean.)"
	}

	steps := shuffleTake(r, pb.steps, 4, 6)
	if r.Float64() < 0.35 {
		steps = append(steps, pick(r, extraLines))
	}

	riskLevel := core.RiskMedium
	if pb.escalate {
		riskLevel = core.RiskHigh
	}

	return &core.StructuredReply{
		RiskLevel:         riskLevel,
		Summary:           summary,
		Steps:             steps,
		EscalateSuggested: pb.escalate,
		Confidence:        pb.confidence,
		Model:             ModelName,
		PromptVersion:     pb.promptVersion,
	}
}
