// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"errors"
	"fmt"

	"github.com/ik5/audplay/metadata"
)

var (
	ErrContractViolation = errors.New("decoder contract violation")
	ErrDecodeFault       = errors.New("decode fault")
	ErrDestroyed         = errors.New("decoder destroyed")
	ErrUnknownFormat     = errors.New("unknown format")
)

// ContractError reports a call made in the wrong state or with an invalid
// argument. It unwraps to ErrContractViolation.
type ContractError struct {
	Op     string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("decoder: %s: %s", e.Op, e.Reason)
}

func (e *ContractError) Unwrap() error { return ErrContractViolation }

// DecodeError reports a codec failure. The context that returned it has
// already been reset.
type DecodeError struct {
	Codec  metadata.CodecName
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoder: %s: %s: %v", e.Codec, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecodeFault, e.Err} }
