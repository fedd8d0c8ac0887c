// Package review coordinates review-specialist dispatch after a phase
// completes: building per-specialist prompts, invoking an assistant CLI
// once per specialist, tolerantly parsing its JSON verdict, and aggregating
// results into the gating decision the scheduler acts on.
package review

import "strings"

// Built-in specialist type identifiers. Any other string is treated as a
// custom specialist name.
const (
	TypeSecurity     = "security_sentinel"
	TypePerformance  = "performance_oracle"
	TypeArchitecture = "architecture_strategist"
	TypeSimplicity   = "simplicity_reviewer"
)

// NormalizeType maps the aliases a phase file may use ("security", "perf",
// "security-sentinel", ...) onto the canonical built-in identifiers. Unknown
// strings pass through unchanged and are treated as custom specialists.
func NormalizeType(s string) string {
	switch strings.ToLower(s) {
	case "security", "security-sentinel", "security_sentinel":
		return TypeSecurity
	case "performance", "perf", "performance-oracle", "performance_oracle":
		return TypePerformance
	case "architecture", "arch", "architecture-strategist", "architecture_strategist":
		return TypeArchitecture
	case "simplicity", "simple", "simplicity-reviewer", "simplicity_reviewer":
		return TypeSimplicity
	default:
		return s
	}
}

// IsBuiltin reports whether a normalized type is one of the four built-ins.
func IsBuiltin(normalizedType string) bool {
	switch normalizedType {
	case TypeSecurity, TypePerformance, TypeArchitecture, TypeSimplicity:
		return true
	default:
		return false
	}
}

// DisplayName returns the human-readable name for a normalized specialist
// type, or the raw custom name unchanged.
func DisplayName(normalizedType string) string {
	switch normalizedType {
	case TypeSecurity:
		return "Security Sentinel"
	case TypePerformance:
		return "Performance Oracle"
	case TypeArchitecture:
		return "Architecture Strategist"
	case TypeSimplicity:
		return "Simplicity Reviewer"
	default:
		return normalizedType
	}
}

// AgentName returns a lowercase, hyphenated identifier suitable for logs and
// prompt headers.
func AgentName(normalizedType string) string {
	switch normalizedType {
	case TypeSecurity:
		return "security-sentinel"
	case TypePerformance:
		return "performance-oracle"
	case TypeArchitecture:
		return "architecture-strategist"
	case TypeSimplicity:
		return "simplicity-reviewer"
	default:
		return strings.ReplaceAll(strings.ToLower(normalizedType), " ", "-")
	}
}

// DefaultFocusAreas returns the built-in focus areas for a normalized
// specialist type. Custom specialists get none by default — callers must
// supply their own via SpecialistConfig.FocusAreas.
func DefaultFocusAreas(normalizedType string) []string {
	switch normalizedType {
	case TypeSecurity:
		return []string{
			"SQL injection vulnerabilities",
			"Cross-site scripting (XSS)",
			"Authentication bypass risks",
			"Secrets exposure in code or logs",
			"Input validation gaps",
			"Command injection vectors",
			"Path traversal vulnerabilities",
			"Insecure deserialization",
		}
	case TypePerformance:
		return []string{
			"N+1 query patterns",
			"Missing database indexes",
			"Memory leaks and unbounded growth",
			"Algorithmic complexity issues",
			"Unnecessary allocations",
			"Blocking operations in async code",
			"Cache misuse or missing caching",
			"Inefficient data structures",
		}
	case TypeArchitecture:
		return []string{
			"SOLID principle violations",
			"Excessive coupling between modules",
			"Layering violations",
			"Separation of concerns issues",
			"Circular dependencies",
			"Inconsistent abstraction levels",
			"Missing or weak interfaces",
			"God objects or functions",
		}
	case TypeSimplicity:
		return []string{
			"Over-engineering patterns",
			"Premature abstraction",
			"YAGNI violations",
			"Unnecessary complexity",
			"Dead code or unused features",
			"Overly clever solutions",
			"Excessive indirection",
			"Configuration over convention abuse",
		}
	default:
		return nil
	}
}
