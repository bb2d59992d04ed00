package config

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid config")
	ErrMissingTelegram  = errors.New("telegram backend needs bot_token and chat_id")
	ErrUnknownBackend   = errors.New("unknown notification backend")
	ErrUnknownLogFormat = errors.New("unknown log format")
)
