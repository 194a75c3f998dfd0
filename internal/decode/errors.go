// SPDX-License-Identifier: MIT
package decode

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidFile       = errors.New("invalid audio file")
	ErrUnsupportedDepth  = errors.New("unsupported bit depth")
	ErrInvalidChannels   = errors.New("invalid channel layout")
	ErrEmptyAudio        = errors.New("audio contains no samples")
)
