// SPDX-License-Identifier: MIT
package engine

import "errors"

var (
	// ErrEngineNotReady is returned for any call on an instance that was never
	// created, has been freed, or was poisoned by a failed upload.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrUploadLengthMismatch means the waveform read back from engine memory
	// did not match what was written. The instance is unusable afterwards.
	ErrUploadLengthMismatch = errors.New("waveform upload length mismatch")

	// ErrModuleNotInitialized means the engine module itself failed to load.
	ErrModuleNotInitialized = errors.New("engine module not initialized")
)
