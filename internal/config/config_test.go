package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReminderLeadMinutes != 5 {
		t.Errorf("lead: got %d", cfg.ReminderLeadMinutes)
	}
	if cfg.ReminderPollInterval() != time.Minute {
		t.Errorf("poll interval: got %v", cfg.ReminderPollInterval())
	}
	if cfg.AppointmentDuration() != 30*time.Minute {
		t.Errorf("duration: got %v", cfg.AppointmentDuration())
	}
	if cfg.MaxBatchAppointments != 90 {
		t.Errorf("batch cap: got %d", cfg.MaxBatchAppointments)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REMINDER_LEAD_MINUTES", "10")
	t.Setenv("REMINDER_POLL_INTERVAL_MS", "30000")
	t.Setenv("APPOINTMENT_DURATION_MINUTES", "45")
	t.Setenv("MAX_BATCH_APPOINTMENTS", "14")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReminderLead() != 10*time.Minute {
		t.Errorf("lead: got %v", cfg.ReminderLead())
	}
	if cfg.ReminderPollInterval() != 30*time.Second {
		t.Errorf("poll interval: got %v", cfg.ReminderPollInterval())
	}
	if cfg.AppointmentDuration() != 45*time.Minute {
		t.Errorf("duration: got %v", cfg.AppointmentDuration())
	}
	if cfg.MaxBatchAppointments != 14 {
		t.Errorf("batch cap: got %d", cfg.MaxBatchAppointments)
	}
	if cfg.Port != "9000" {
		t.Errorf("port: got %s", cfg.Port)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadRejectsNonPositive(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MAX_BATCH_APPOINTMENTS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero batch cap")
	}
}
