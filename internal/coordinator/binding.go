package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zha-go/internal/gateway"
	"zha-go/internal/helpers"
	"zha-go/internal/store"
)

func normalizePair(source, target string) (string, string, error) {
	src, err := NormalizeIEEE(source)
	if err != nil {
		return "", "", fmt.Errorf("source: %w", err)
	}
	dst, err := NormalizeIEEE(target)
	if err != nil {
		return "", "", fmt.Errorf("target: %w", err)
	}
	return src, dst, nil
}

func (c *Coordinator) matchOptions() []helpers.MatchOption {
	if !c.config.BindableOnly {
		return nil
	}
	return []helpers.MatchOption{helpers.WithClusterFilter(c.registry.IsBindable)}
}

// MatchedClusters lists the clusters of source that can be bound to target.
func (c *Coordinator) MatchedClusters(source, target string) ([]helpers.ClusterMatch, error) {
	source, target, err := normalizePair(source, target)
	if err != nil {
		return nil, err
	}
	return helpers.MatchedClusters(c.graph, source, target, c.matchOptions()...)
}

// BindableTargets returns every stored device source can be bound to.
func (c *Coordinator) BindableTargets(source string) ([]*store.Device, error) {
	source, err := NormalizeIEEE(source)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.GetDevice(source); err != nil {
		return nil, err
	}
	devices, err := c.store.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	targets := []*store.Device{}
	for _, dev := range devices {
		if dev.IEEEAddress == source {
			continue
		}
		ok, err := helpers.IsBindableTarget(c.graph, source, dev.IEEEAddress, c.matchOptions()...)
		if err != nil {
			return nil, err
		}
		if ok {
			targets = append(targets, dev)
		}
	}
	return targets, nil
}

// BindDevices binds every matched cluster of source to target. Matches that
// fail are reported together; the ones that succeeded stay bound.
func (c *Coordinator) BindDevices(ctx context.Context, source, target string) ([]helpers.ClusterMatch, error) {
	return c.applyBindings(ctx, source, target, true)
}

// UnbindDevices removes every matched binding of source to target.
func (c *Coordinator) UnbindDevices(ctx context.Context, source, target string) ([]helpers.ClusterMatch, error) {
	return c.applyBindings(ctx, source, target, false)
}

func (c *Coordinator) applyBindings(ctx context.Context, source, target string, bind bool) ([]helpers.ClusterMatch, error) {
	matches, err := c.MatchedClusters(source, target)
	if err != nil {
		return nil, err
	}
	op, eventType := "unbind", EventBindingRemoved
	if bind {
		op, eventType = "bind", EventBindingCreated
	}
	if len(matches) == 0 {
		c.logger.Info("no bindable clusters", "op", op, "source", source, "target", target)
		return nil, nil
	}

	var errs []error
	done := make([]helpers.ClusterMatch, 0, len(matches))
	for _, m := range matches {
		req := gateway.BindRequest{
			SrcIEEE:   m.SourceIEEE,
			SrcEP:     m.SourceEndpoint,
			ClusterID: m.ClusterID,
			DstIEEE:   m.TargetIEEE,
			DstEP:     m.TargetEndpoint,
		}
		if bind {
			err = c.gw.Bind(ctx, req)
		} else {
			err = c.gw.Unbind(ctx, req)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", op, m, err))
			continue
		}

		rec := &store.Binding{
			SourceIEEE:     m.SourceIEEE,
			SourceEndpoint: m.SourceEndpoint,
			ClusterID:      m.ClusterID,
			TargetIEEE:     m.TargetIEEE,
			TargetEndpoint: m.TargetEndpoint,
			CreatedAt:      time.Now(),
		}
		if bind {
			err = c.store.SaveBinding(rec)
		} else if err = c.store.DeleteBinding(rec); errors.Is(err, store.ErrNotFound) {
			err = nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("persist %s: %w", m, err))
		}

		done = append(done, m)
		c.logger.Info(op+" ok", "match", m.String())
		c.events.Emit(Event{Type: eventType, Data: m})
	}
	return done, errors.Join(errs...)
}
