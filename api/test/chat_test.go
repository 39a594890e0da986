package test

import (
	"net/http"
	"strings"
	"testing"
)

type chatView struct {
	Step    string `json:"step"`
	Prompt  string `json:"prompt"`
	Error   string `json:"error"`
	Options []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"options"`
	Draft struct {
		Manufacturer string `json:"manufacturer"`
		Model        string `json:"model"`
		FuelType     string `json:"fuelType"`
		Phone        string `json:"phone"`
		BookingRef   string `json:"bookingRef"`
	} `json:"draft"`
	RedirectURL string `json:"redirectUrl"`
}

func (v chatView) optionIDs() []string {
	ids := make([]string, 0, len(v.Options))
	for _, o := range v.Options {
		ids = append(ids, o.ID)
	}
	return ids
}

func selectOption(t *testing.T, env *TestEnv, id string) chatView {
	t.Helper()
	var v chatView
	w := env.post(t, "/chat/select", map[string]string{"optionId": id}, &v)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("selecting %q: status %s", id, w.Status)
	}
	return v
}

func sendInput(t *testing.T, env *TestEnv, text string) chatView {
	t.Helper()
	var v chatView
	w := env.post(t, "/chat/input", map[string]string{"text": text}, &v)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("sending input %q: status %s", text, w.Status)
	}
	return v
}

func TestChatBookingFlow(t *testing.T) {
	env := NewTestEnv(t)

	var v chatView
	if w := env.post(t, "/chat", nil, &v); w.StatusCode != http.StatusOK {
		t.Fatalf("starting chat: status %s", w.Status)
	}
	if v.Step != "welcome" {
		t.Fatalf("expected welcome step, got %s", v.Step)
	}

	v = selectOption(t, env, "book")
	if v.Step != "manufacturer" {
		t.Fatalf("expected manufacturer step, got %s", v.Step)
	}

	v = selectOption(t, env, "mf-maruti")
	if got := v.optionIDs(); len(got) != 3 || got[0] != "md-swift" {
		t.Fatalf("unexpected maruti models: %v", got)
	}

	v = selectOption(t, env, "md-swift")
	v = selectOption(t, env, "fl-petrol")
	if v.Draft.FuelType != "Petrol" {
		t.Fatalf("draft fuel not recorded: %+v", v.Draft)
	}

	v = selectOption(t, env, "ar-andheri")
	v = selectOption(t, env, "periodic")
	v = selectOption(t, env, "pickup")
	if v.Step != "date" {
		t.Fatalf("expected date step, got %s", v.Step)
	}

	v = sendInput(t, env, "25-12-2026")
	v = selectOption(t, env, "ts-09:00-am---11:00-am")
	if v.Step != "name" {
		t.Fatalf("expected name step, got %s", v.Step)
	}

	v = sendInput(t, env, "Asha")
	v = sendInput(t, env, "9876543210")
	if v.Step != "summary" {
		t.Fatalf("expected summary step, got %s", v.Step)
	}

	// The phone capture force-creates the lead on the store.
	env.Flush(t)
	if n := env.Store.LeadCount(); n != 1 {
		t.Fatalf("expected one stored lead, got %d", n)
	}

	v = selectOption(t, env, "confirm")
	if v.Step != "confirmed" {
		t.Fatalf("expected confirmed step, got %s", v.Step)
	}
	if !strings.HasPrefix(v.Draft.BookingRef, "GR-") {
		t.Fatalf("missing booking reference: %q", v.Draft.BookingRef)
	}

	// Completion patches the same lead, no fork.
	env.Flush(t)
	if n := env.Store.LeadCount(); n != 1 {
		t.Fatalf("expected completed lead to reuse the record, got %d", n)
	}
}

func TestChatInvalidPhoneReprompts(t *testing.T) {
	env := NewTestEnv(t)

	env.post(t, "/chat", nil, nil)
	selectOption(t, env, "book")
	selectOption(t, env, "mf-maruti")
	selectOption(t, env, "md-swift")
	selectOption(t, env, "fl-petrol")
	selectOption(t, env, "ar-andheri")
	selectOption(t, env, "periodic")
	selectOption(t, env, "pickup")
	sendInput(t, env, "25-12-2026")
	selectOption(t, env, "ts-09:00-am---11:00-am")
	sendInput(t, env, "Asha")

	v := sendInput(t, env, "12345")
	if v.Error == "" || v.Step != "phone" {
		t.Fatalf("invalid phone must re-prompt with an error, got step=%s error=%q", v.Step, v.Error)
	}

	// Nothing was persisted for the bad number.
	env.Flush(t)
	if n := env.Store.LeadCount(); n != 0 {
		t.Fatalf("expected no stored lead, got %d", n)
	}
}

func TestChatWhatsAppHandoff(t *testing.T) {
	env := NewTestEnv(t)

	env.post(t, "/chat", nil, nil)
	v := selectOption(t, env, "whatsapp")

	if v.Step != "whatsapp" {
		t.Fatalf("expected whatsapp step, got %s", v.Step)
	}
	if !strings.HasPrefix(v.RedirectURL, "https://wa.me/") {
		t.Fatalf("expected a wa.me redirect, got %q", v.RedirectURL)
	}
}
