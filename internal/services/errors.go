package services

import "errors"

// Validation errors.
var (
	ErrInvalidAmount        = errors.New("donation amount must be a positive number")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrWeakPassword         = errors.New("password must be at least 8 characters")
	ErrMissingFields        = errors.New("missing required fields")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidGoal          = errors.New("goal amount must be a positive number")
	ErrDeadlineInPast       = errors.New("deadline must be in the future")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidDecision      = errors.New("moderation status must be approved or rejected")
	ErrInvalidContactStatus = errors.New("invalid contact status")
	ErrEmptyComment         = errors.New("comment text is required")
	ErrCommentTooLong       = errors.New("comment text is too long")
)

// Authentication errors.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPasswordResetRequired = errors.New("password reset required")
	ErrInvalidOTP            = errors.New("invalid or expired verification code")
	ErrInvalidResetToken     = errors.New("invalid or expired reset token")
	ErrIncorrectPassword     = errors.New("current password is incorrect")
)

// Lookup and ownership errors.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrContactNotFound  = errors.New("message not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrCampaignHidden   = errors.New("campaign not found or awaiting approval")
	ErrNotCommentOwner  = errors.New("not authorized to delete this comment")
	ErrNotCampaignOwner = errors.New("not authorized to view this campaign")
	ErrForbidden        = errors.New("admin access required")
)

// Business rule violations.
var (
	ErrCampaignNotAcceptingDonations = errors.New("campaign is not accepting donations")
	ErrCampaignExpired               = errors.New("campaign deadline has passed")
	ErrSelfDonation                  = errors.New("you cannot donate to your own campaign")
	ErrInvalidModerationState        = errors.New("only pending campaigns can be moderated")
	ErrModerationNoteRequired        = errors.New("a rejection note of at least 10 characters is required")
	ErrSelfRoleChange                = errors.New("you cannot change your own role")
	ErrLastAdmin                     = errors.New("cannot remove the last admin")
	ErrCommentsClosed                = errors.New("comments are only allowed on approved campaigns")
	ErrInvalidContactTransition      = errors.New("invalid contact status transition")
	ErrResponseRequired              = errors.New("a response is required to resolve a message")
)
