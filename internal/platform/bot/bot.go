// Package bot provides the rule-based hospital assistant. The responder
// matches keyword rules against incoming messages in registration order and
// returns the first match, personalized for the signed-in user when a session
// is present. Conversations of signed-in users are persisted for history.
package bot

import (
	"strings"
	"sync"

	"github.com/medilink/hms/internal/platform/session"
)

// Rule maps a set of trigger keywords to a canned response. Keywords match
// case-insensitively as substrings of the message. Responses may reference
// {{user_name}}, which is filled in from the session when present.
type Rule struct {
	ID       string   `json:"id"`
	Keywords []string `json:"keywords"`
	// Response is returned to anonymous users (and to signed-in users when
	// PatientResponse is empty).
	Response string `json:"response"`
	// PatientResponse, when set, is returned instead of Response for
	// signed-in patients.
	PatientResponse string `json:"patient_response,omitempty"`
}

// Responder matches messages against an ordered rule list.
type Responder struct {
	mu        sync.RWMutex
	rules     []Rule
	ruleOrder map[string]int
	fallback  string
}

// NewResponder creates a Responder with the built-in hospital rules
// pre-registered.
func NewResponder() *Responder {
	r := &Responder{
		ruleOrder: make(map[string]int),
	}
	r.registerBuiltIn()
	return r
}

func (r *Responder) registerBuiltIn() {
	builtIn := []Rule{
		{
			ID:       "greeting",
			Keywords: []string{"hello", "hi", "hey", "greetings"},
			Response: "Hello! Welcome to Medilink Hospital. How can I assist you today?",
			PatientResponse: "Hello {{user_name}}! How can I help you today?",
		},
		{
			ID:       "booking",
			Keywords: []string{"book", "appointment", "schedule", "doctor"},
			Response: "To book an appointment, please log in as a patient or register an account first.",
			PatientResponse: "To book an appointment, open Book Appointment in your dashboard and choose your preferred doctor, date, and time.",
		},
		{
			ID:       "doctors",
			Keywords: []string{"find doctor", "doctors", "specialist", "cardiologist", "surgeon"},
			Response: "You can view all our doctors and their specializations on the Book Appointment page. We have specialists in Cardiology, Neurology, Orthopedics, and more.",
		},
		{
			ID:       "cancel",
			Keywords: []string{"cancel", "cancellation"},
			Response: "Please log in to manage your appointments.",
			PatientResponse: "To cancel an appointment, go to My Appointments and use Cancel Appointment next to the scheduled visit.",
		},
		{
			ID:       "records",
			Keywords: []string{"medical record", "history", "prescription", "diagnosis"},
			Response: "Medical records are available after you log in as a patient.",
			PatientResponse: "You can view your complete medical history under My Medical Records, including diagnoses, prescriptions, and doctor's notes.",
		},
		{
			ID:       "password",
			Keywords: []string{"forgot password", "reset password", "password"},
			Response: "You can reset your password with Forgot Password on the login page. We will email you a reset link valid for one hour.",
		},
		{
			ID:       "hours",
			Keywords: []string{"hours", "open", "timing", "time"},
			Response: "Medilink Hospital is open 24/7 for emergencies. Regular OPD hours are 9:00 AM to 8:00 PM, Monday to Saturday.",
		},
		{
			ID:       "contact",
			Keywords: []string{"contact", "phone", "email", "address", "location"},
			Response: "Phone: +880-XXX-XXXXXX, Email: info@medilink.com, Address: Dhaka, Bangladesh. For emergencies, call our 24/7 helpline.",
		},
		{
			ID:       "help",
			Keywords: []string{"help", "what can you do", "features", "how"},
			Response: "I can help you with booking appointments, finding doctors, viewing medical records, cancelling appointments, resetting passwords, and hospital information. Just ask!",
		},
		{
			ID:       "thanks",
			Keywords: []string{"thank", "thanks", "appreciate"},
			Response: "You're welcome! Is there anything else I can help you with?",
		},
		{
			ID:       "goodbye",
			Keywords: []string{"bye", "goodbye", "see you", "exit"},
			Response: "Goodbye! Take care and stay healthy. Feel free to chat anytime you need help.",
		},
	}
	for _, rule := range builtIn {
		r.registerLocked(rule)
	}
	r.fallback = "I'm here to help! You can ask me about booking appointments, finding doctors, medical records, or hospital hours and contact info. What would you like to know?"
}

func (r *Responder) registerLocked(rule Rule) {
	if i, ok := r.ruleOrder[rule.ID]; ok {
		r.rules[i] = rule
		return
	}
	r.ruleOrder[rule.ID] = len(r.rules)
	r.rules = append(r.rules, rule)
}

// RegisterRule adds or replaces a rule. Replacement keeps the rule's position
// in the match order; new rules are appended ahead of the fallback.
func (r *Responder) RegisterRule(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(rule)
}

// SetFallback replaces the response used when no rule matches.
func (r *Responder) SetFallback(response string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = response
}

// Rules returns a copy of the registered rules in match order.
func (r *Responder) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Respond returns the reply for a message. The principal may be nil for
// anonymous visitors.
func (r *Responder) Respond(message string, p *session.Principal) string {
	normalized := strings.ToLower(strings.TrimSpace(message))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.rules {
		if !matches(normalized, rule.Keywords) {
			continue
		}
		return render(rule, p)
	}
	return r.fallback
}

func matches(message string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

func render(rule Rule, p *session.Principal) string {
	response := rule.Response
	if p != nil && p.UserType == session.UserTypePatient && rule.PatientResponse != "" {
		response = rule.PatientResponse
	}
	if p != nil {
		response = strings.ReplaceAll(response, "{{user_name}}", p.UserName)
	}
	return response
}
