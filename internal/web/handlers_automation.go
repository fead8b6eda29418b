package web

import (
	"net/http"

	"zha-go/internal/automation"
)

func (s *Server) automationAvailable(w http.ResponseWriter) bool {
	if s.scriptMgr == nil || s.autoEngine == nil {
		s.writeError(w, http.StatusServiceUnavailable, "automation not available")
		return false
	}
	return true
}

func (s *Server) handleAPIListScripts(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusOK, []*automation.Script{})
		return
	}
	scripts, err := s.scriptMgr.List()
	if err != nil {
		s.writeDomainError(w, "list scripts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) handleAPIGetScript(w http.ResponseWriter, r *http.Request) {
	if !s.automationAvailable(w) {
		return
	}
	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, "get script", err)
		return
	}
	s.writeJSON(w, http.StatusOK, script)
}

type saveScriptRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LuaCode     string `json:"lua_code"`
	Enabled     bool   `json:"enabled"`
}

func (s *Server) handleAPICreateScript(w http.ResponseWriter, r *http.Request) {
	if !s.automationAvailable(w) {
		return
	}
	var req saveScriptRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	saved, err := s.scriptMgr.Save(&automation.Script{
		Meta: automation.ScriptMeta{
			Name:        req.Name,
			Description: req.Description,
			Enabled:     req.Enabled,
		},
		LuaCode: req.LuaCode,
	})
	if err != nil {
		s.writeDomainError(w, "create script", err)
		return
	}
	s.applyScript(saved)
	s.writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleAPIUpdateScript(w http.ResponseWriter, r *http.Request) {
	if !s.automationAvailable(w) {
		return
	}
	existing, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, "get script", err)
		return
	}
	var req saveScriptRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name != "" {
		existing.Meta.Name = req.Name
	}
	existing.Meta.Description = req.Description
	existing.Meta.Enabled = req.Enabled
	existing.LuaCode = req.LuaCode

	saved, err := s.scriptMgr.Save(existing)
	if err != nil {
		s.writeDomainError(w, "update script", err)
		return
	}
	s.applyScript(saved)
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleAPIDeleteScript(w http.ResponseWriter, r *http.Request) {
	if !s.automationAvailable(w) {
		return
	}
	id := r.PathValue("id")
	s.autoEngine.StopScript(id)
	if err := s.scriptMgr.Delete(id); err != nil {
		s.writeDomainError(w, "delete script", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIToggleScript(w http.ResponseWriter, r *http.Request) {
	if !s.automationAvailable(w) {
		return
	}
	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, "get script", err)
		return
	}
	script.Meta.Enabled = !script.Meta.Enabled
	saved, err := s.scriptMgr.Save(script)
	if err != nil {
		s.writeDomainError(w, "toggle script", err)
		return
	}
	s.applyScript(saved)
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleAPIRunScript(w http.ResponseWriter, r *http.Request) {
	if !s.automationAvailable(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.autoEngine.RunScript(r.PathValue("id")))
}

func (s *Server) handleAPIRunCode(w http.ResponseWriter, r *http.Request) {
	if !s.automationAvailable(w) {
		return
	}
	var req struct {
		LuaCode string `json:"lua_code"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.autoEngine.RunLuaCode(req.LuaCode))
}

func (s *Server) handleAPIRunning(w http.ResponseWriter, r *http.Request) {
	if s.autoEngine == nil {
		s.writeJSON(w, http.StatusOK, []string{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.autoEngine.Running())
}

// applyScript loads an enabled script into the engine and stops a disabled one.
func (s *Server) applyScript(script *automation.Script) {
	if !script.Meta.Enabled {
		s.autoEngine.StopScript(script.ID)
		return
	}
	if err := s.autoEngine.ReloadScript(script.ID); err != nil {
		s.logger.Error("reload script", "id", script.ID, "err", err)
	}
}
