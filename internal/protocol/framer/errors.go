package framer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAsset  = errors.New("framer: invalid asset")
	ErrInvalidConfig = errors.New("framer: invalid config")
)

// InvalidAssetError reports an asset whose size or metadata cannot be
// represented by the packet fields.
type InvalidAssetError struct {
	Reason string
}

func (e *InvalidAssetError) Error() string {
	return ErrInvalidAsset.Error() + ": " + e.Reason
}

func (e *InvalidAssetError) Unwrap() error {
	return ErrInvalidAsset
}

// InvalidConfigError reports limits that cannot produce a valid packet.
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return ErrInvalidConfig.Error() + ": " + e.Reason
}

func (e *InvalidConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func invalidAsset(format string, args ...any) error {
	return &InvalidAssetError{Reason: fmt.Sprintf(format, args...)}
}

func invalidConfig(format string, args ...any) error {
	return &InvalidConfigError{Reason: fmt.Sprintf(format, args...)}
}
