package service

import "errors"

var (
	ErrTestNotFound         = errors.New("test not found")
	ErrTestHasNoQuestions   = errors.New("test has no sections or questions")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptForbidden     = errors.New("attempt does not belong to this user")
	ErrAlreadySubmitted     = errors.New("attempt already submitted")
	ErrQuestionNotInSection = errors.New("question not in current or completed section")
	ErrIndexOutOfRange      = errors.New("question index out of range")
	ErrSectionMismatch      = errors.New("section index does not match attempt state")
	ErrAttemptNotFinal      = errors.New("attempt not submitted yet")
)
