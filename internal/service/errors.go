package service

import "errors"

var (
	ErrValidation           = errors.New("invalid input")
	ErrCommunityNameTaken   = errors.New("community name already taken")
	ErrNotAuthorized        = errors.New("only the community creator can perform this action")
	ErrDuplicateJoinRequest = errors.New("join request already sent, waiting for approval")
	ErrNoPendingRequest     = errors.New("no pending request from this user")
	ErrSelfKick             = errors.New("creator cannot kick themselves")
	ErrCommunityNotFound    = errors.New("community not found")
	ErrMemberNotFound       = errors.New("user is not a member of this community")
	ErrIssueNotFound        = errors.New("issue not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: email already in use")
	ErrInternalServer       = errors.New("internal server error")
)
