package services

import (
	"errors"
	"fmt"
	"strings"
)

// ClassifyError renders a phase failure as a single-line human message.
// Stack traces and driver internals never reach error_message; the root
// cause is bucketed by substring scan and paired with an actionable hint.
func ClassifyError(action, source string, err error) string {
	message := err.Error()
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower,
		"no such host", "connection refused", "connection reset",
		"network is unreachable", "i/o timeout", "dial tcp", "dns"):
		return fmt.Sprintf("Failed to %s from %s - Network/DNS error. Please check the hostname and network connectivity.", action, source)

	case containsAny(lower,
		"unable to authenticate", "authentication", "unauthorized",
		"permission denied", "invalid credentials", "access denied", "forbidden"):
		return fmt.Sprintf("Failed to %s from %s - Authentication error. Please check the configured credentials.", action, source)

	case containsAny(lower,
		"file does not exist", "no such file", "not found", "does not exist"):
		return fmt.Sprintf("Failed to %s from %s - File not found. Please verify the remote file or table exists.", action, source)
	}

	return fmt.Sprintf("Failed to %s from %s - %s: %s", action, source, errorKind(err), message)
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

// errorKind names the root error's concrete type, without the pointer
// marker or wrapping noise. Plain string errors collapse to "Error".
func errorKind(err error) string {
	root := err
	for {
		unwrapped := errors.Unwrap(root)
		if unwrapped == nil {
			break
		}
		root = unwrapped
	}

	kind := strings.TrimPrefix(fmt.Sprintf("%T", root), "*")
	if i := strings.LastIndex(kind, "."); i >= 0 {
		kind = kind[i+1:]
	}
	switch kind {
	case "errorString", "wrapError", "fundamental":
		return "Error"
	}
	return kind
}
