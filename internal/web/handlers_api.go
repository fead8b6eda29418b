package web

import (
	"context"
	"fmt"
	"net/http"

	"zha-go/internal/coordinator"
	"zha-go/internal/helpers"
	"zha-go/internal/zcl"
)

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.coord.Devices().ListDevices()
	if err != nil {
		s.writeDomainError(w, "list devices", err)
		return
	}
	s.writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.coord.Devices().GetDevice(r.PathValue("ieee"))
	if err != nil {
		s.writeDomainError(w, "get device", err)
		return
	}
	s.writeJSON(w, http.StatusOK, dev)
}

type renameDeviceRequest struct {
	FriendlyName string `json:"friendly_name"`
}

func (s *Server) handleAPIRenameDevice(w http.ResponseWriter, r *http.Request) {
	var req renameDeviceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	dev, err := s.coord.Devices().RenameDevice(r.PathValue("ieee"), req.FriendlyName)
	if err != nil {
		s.writeDomainError(w, "rename device", err)
		return
	}
	s.writeJSON(w, http.StatusOK, dev)
}

func (s *Server) handleAPIDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Devices().RemoveDevice(r.PathValue("ieee")); err != nil {
		s.writeDomainError(w, "delete device", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAPIBindable lists the devices the source can be bound to, or with
// ?target= the cluster matches between the two.
func (s *Server) handleAPIBindable(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("ieee")
	if target := r.URL.Query().Get("target"); target != "" {
		matches, err := s.coord.MatchedClusters(source, target)
		if err != nil {
			s.writeDomainError(w, "matched clusters", err)
			return
		}
		s.writeJSON(w, http.StatusOK, nonNil(matches))
		return
	}
	targets, err := s.coord.BindableTargets(source)
	if err != nil {
		s.writeDomainError(w, "bindable targets", err)
		return
	}
	s.writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleAPIBindings(w http.ResponseWriter, r *http.Request) {
	ieee, err := coordinator.NormalizeIEEE(r.PathValue("ieee"))
	if err != nil {
		s.writeDomainError(w, "list bindings", err)
		return
	}
	bindings, err := s.coord.Store().ListBindings(ieee)
	if err != nil {
		s.writeDomainError(w, "list bindings", err)
		return
	}
	s.writeJSON(w, http.StatusOK, bindings)
}

type issueCommandRequest struct {
	Endpoint  uint8                  `json:"endpoint"`
	ClusterID uint16                 `json:"cluster_id"`
	Command   string                 `json:"command"`
	Direction zcl.CommandDirection   `json:"direction"`
	Fields    map[string]interface{} `json:"fields"`
}

func (s *Server) handleAPIIssueCommand(w http.ResponseWriter, r *http.Request) {
	var req issueCommandRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Command == "" {
		s.writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	fields, err := s.coord.IssueCommand(r.Context(), coordinator.CommandRequest{
		IEEE:      r.PathValue("ieee"),
		Endpoint:  req.Endpoint,
		ClusterID: req.ClusterID,
		Command:   req.Command,
		Direction: req.Direction,
		Fields:    req.Fields,
	})
	if err != nil {
		s.writeDomainError(w, "issue command", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "fields": fields})
}

type bindRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type bindResponse struct {
	Matches []helpers.ClusterMatch `json:"matches"`
	Error   string                 `json:"error,omitempty"`
}

func (s *Server) handleAPIBind(w http.ResponseWriter, r *http.Request) {
	s.handleBinding(w, r, "bind", s.coord.BindDevices)
}

func (s *Server) handleAPIUnbind(w http.ResponseWriter, r *http.Request) {
	s.handleBinding(w, r, "unbind", s.coord.UnbindDevices)
}

// handleBinding runs a bind or unbind. A partial failure answers 502 with
// the matches that succeeded alongside the error.
func (s *Server) handleBinding(w http.ResponseWriter, r *http.Request, op string,
	apply func(ctx context.Context, source, target string) ([]helpers.ClusterMatch, error)) {
	var req bindRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" || req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "source and target are required")
		return
	}

	matches, err := apply(r.Context(), req.Source, req.Target)
	if err != nil && len(matches) == 0 {
		s.writeDomainError(w, op, err)
		return
	}
	if err != nil {
		s.logger.Warn(op+" partially failed", "source", req.Source, "target", req.Target, "err", err)
		s.writeJSON(w, http.StatusBadGateway, bindResponse{Matches: matches, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, bindResponse{Matches: nonNil(matches)})
}

// convertRequest converts either a single value against a named type, or
// command fields against a command schema.
type convertRequest struct {
	Value interface{} `json:"value"`
	Type  string      `json:"type"`

	ClusterID uint16                 `json:"cluster_id"`
	Command   string                 `json:"command"`
	Direction zcl.CommandDirection   `json:"direction"`
	Fields    map[string]interface{} `json:"fields"`
}

func (s *Server) handleAPIConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.Type != "" {
		ft, ok := s.coord.Registry().Type(req.Type)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown type %q", req.Type))
			return
		}
		value, err := helpers.ConvertZCLValue(req.Value, ft)
		if err != nil {
			s.writeDomainError(w, "convert value", err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"value": value})
		return
	}

	if req.Command == "" {
		s.writeError(w, http.StatusBadRequest, "type or command is required")
		return
	}
	dir := req.Direction
	if dir == "" {
		dir = zcl.DirectionToServer
	}
	fields, payload, err := s.coord.ConvertCommand(req.ClusterID, req.Command, dir, req.Fields)
	if err != nil {
		s.writeDomainError(w, "convert command", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"fields":  fields,
		"payload": fmt.Sprintf("%X", payload),
	})
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.Registry().All())
}

func nonNil(m []helpers.ClusterMatch) []helpers.ClusterMatch {
	if m == nil {
		return []helpers.ClusterMatch{}
	}
	return m
}
