package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moondance-labs/netports/internal/reuseport"
	"github.com/moondance-labs/netports/pkg/model"
)

type ProbeRequest struct {
	Port int
	// Host defaults to 0.0.0.0, or :: when IPv6 is set.
	Host     string
	IPv6     bool
	IPv6Only bool
	Hold     time.Duration
}

// Probe records the current listeners on the port, then binds it with
// SO_REUSEPORT and holds the socket briefly. A failed bind is a normal
// result carrying the OS error, not an error return.
func (s *Session) Probe(ctx context.Context, req ProbeRequest) (model.ProbeResult, error) {
	if err := validPort(req.Port); err != nil {
		return model.ProbeResult{}, err
	}

	host := strings.TrimSpace(req.Host)
	useIPv6 := req.IPv6 || strings.Contains(host, ":")
	if host == "" {
		host = "0.0.0.0"
		if useIPv6 {
			host = "::"
		}
	}

	before, err := s.listenersOn(ctx, req.Port, useIPv6)
	if err != nil {
		return model.ProbeResult{}, err
	}

	res := model.ProbeResult{
		Port:     req.Port,
		Host:     host,
		IPv6Only: req.IPv6Only,
		HoldMS:   req.Hold.Milliseconds(),
		Before:   before,
	}

	s.log.Debug("probing", zap.String("host", host), zap.Int("port", req.Port), zap.Bool("ipv6Only", req.IPv6Only))
	if err := reuseport.Probe(ctx, host, req.Port, req.IPv6Only, req.Hold); err != nil {
		res.Error = &model.ProbeError{Code: reuseport.ErrnoName(err), Message: err.Error()}
		if errno, ok := reuseport.Errno(err); ok {
			res.Error.Errno = int(errno)
		}
		return res, nil
	}
	res.Bound = true
	return res, nil
}
