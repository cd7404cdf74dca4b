package core

import (
	"errors"
	"time"
)

// Fixed names inside the working directory. The analysis script relies on them.
const (
	InputH5Name   = "input.h5"
	InputCsvName  = "input.csv"
	JobInfoName   = "input.json"
	ScriptName    = "script.sh"
	WorkdirPrefix = "predictcr_"

	DefaultTimeout = time.Hour
)

type ResultTier string

const (
	UserResults        ResultTier = "user_results"
	TrustedUserResults ResultTier = "trusted_user_results"
	AdminResults       ResultTier = "admin_results"
)

var ResultTiers = []ResultTier{UserResults, TrustedUserResults, AdminResults}

var (
	ErrInputNotFound  = errors.New("input file not found")
	ErrScriptNotFound = errors.New("script not found")
	ErrTimeout        = errors.New("script timed out")
	ErrLaunch         = errors.New("error running script")
)
