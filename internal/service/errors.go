package service

import "errors"

var (
	ErrTitleRequired    = errors.New("title is required")
	ErrReminderNotFound = errors.New("reminder not found")
)
