package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"database": map[string]interface{}{
			"path": "~/.reminderd/reminders.db",
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": FormatPretty,
		},
		"scheduler": map[string]interface{}{
			"exact_alarms": true,
		},
		"action": map[string]interface{}{
			"max_in_flight": 4,
		},
		"notification": map[string]interface{}{
			"backend":        BackendConsole,
			"title_fallback": "Reminder",
			"body":           "Time for your reminder!",
			"open_label":     "Open",
			"complete_label": "Mark complete",
			"colored":        true,
		},
		"telegram": map[string]interface{}{
			"bot_token":    "",
			"chat_id":      "",
			"poll_timeout": 30,
			"api_url":      "https://api.telegram.org",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.reminderd/config.yaml"
}
