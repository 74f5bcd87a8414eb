package errors

import "errors"

var (
	ErrAccountNotFound          = errors.New("account not found in accounts table")
	ErrStackNotFound            = errors.New("stack not found")
	ErrNoCloudFormationTemplate = errors.New("no CloudFormation template found at S3 location")
	ErrUnknownWorkflow          = errors.New("no state machine registered for workflow")
)
