package config

import "errors"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errConfigInvalid      = errors.New("invalid config file")
	errDictInitialSize    = errors.New("dict_initial_size must be a positive power of two")
	errEvloopSetSize      = errors.New("evloop_set_size must be positive")
	errOOMPolicy          = errors.New(`oom_policy must be "abort" or "tolerant"`)
)
