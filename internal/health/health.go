package health

import (
	"fmt"
	"time"

	"joinlink/internal/config"
	"joinlink/internal/link"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// CheckAll runs all readiness checks and returns combined status.
func CheckAll(cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkBaseDomain(cfg),
		checkTransport(cfg),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkBaseDomain(cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "link_base_domain"}
	if _, err := link.NewCodec(cfg.Link.BaseDomain); err != nil {
		result.Error = err.Error()
	} else {
		result.OK = true
	}
	result.Latency = time.Since(start)
	return result
}

func checkTransport(cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "transport"}
	switch cfg.Transport.Mode {
	case "loopback":
		result.OK = true
	case "agent":
		if cfg.Agent.TokenSecret == "" {
			result.Error = "AGENT_TOKEN_SECRET not set"
		} else {
			result.OK = true
		}
	default:
		result.Error = fmt.Sprintf("unknown transport mode %q", cfg.Transport.Mode)
	}
	result.Latency = time.Since(start)
	return result
}
