// Package testserver runs an in-memory OCHAMI lookalike (SMD, BSS and PCS
// surfaces on one listener) for exercising the dispatch layer in tests. State
// lives in maps; handlers implement just enough of each service's contract
// for the client side to be observable.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

// Server is the fake OCHAMI endpoint.
type Server struct {
	// URL is the base URL of the running server.
	URL string

	mu          sync.Mutex
	components  map[string]types.Component
	groups      map[string]*types.Group
	bootParams  []types.BootParameters
	transitions map[string]types.Transition
	power       map[string]types.PowerStatus
	redfish     map[string]types.RedfishEndpoint
	ethernet    []types.EthernetInterface
	hardware    map[string]json.RawMessage
	dropHosts   map[string]struct{}
	stallHosts  map[string]time.Duration

	requests   atomic.Int64
	transSeq   atomic.Int64
	httpServer *httptest.Server
}

// New starts a fake OCHAMI server. The caller must Close it.
func New() *Server {
	s := &Server{
		components:  make(map[string]types.Component),
		groups:      make(map[string]*types.Group),
		transitions: make(map[string]types.Transition),
		power:       make(map[string]types.PowerStatus),
		dropHosts:   make(map[string]struct{}),
		stallHosts:  make(map[string]time.Duration),
		redfish:     make(map[string]types.RedfishEndpoint),
		hardware:    make(map[string]json.RawMessage),
	}

	r := chi.NewRouter()
	r.Use(s.countRequests)

	r.Route("/hsm/v2", func(r chi.Router) {
		r.Get("/State/Components", s.listComponents)
		r.Post("/State/Components", s.createComponents)
		r.Get("/State/Components/{xname}", s.getComponent)
		r.Delete("/State/Components/{xname}", s.deleteComponent)

		r.Get("/groups", s.listGroups)
		r.Post("/groups", s.createGroup)
		r.Get("/groups/{label}", s.getGroup)
		r.Delete("/groups/{label}", s.deleteGroup)
		r.Get("/groups/{label}/members", s.groupMembers)
		r.Post("/groups/{label}/members", s.addGroupMember)
		r.Delete("/groups/{label}/members/{xname}", s.deleteGroupMember)

		r.Get("/Inventory/Hardware", s.hardwareInventory)
		r.Get("/Inventory/Hardware/Query/{xname}", s.hardwareQuery)
		r.Get("/Inventory/RedfishEndpoints", s.listRedfish)
		r.Post("/Inventory/RedfishEndpoints", s.addRedfish)
		r.Put("/Inventory/RedfishEndpoints/{id}", s.updateRedfish)
		r.Delete("/Inventory/RedfishEndpoints/{id}", s.deleteRedfish)
		r.Get("/Inventory/EthernetInterfaces", s.listEthernet)
	})

	r.Route("/boot/v1", func(r chi.Router) {
		r.Get("/bootparameters", s.getBootParams)
		r.Post("/bootparameters", s.putBootParams)
		r.Patch("/bootparameters", s.putBootParams)
		r.Delete("/bootparameters", s.deleteBootParams)
	})

	r.Route("/power-control/v1", func(r chi.Router) {
		r.Get("/power-status", s.powerStatus)
		r.Post("/transitions", s.createTransition)
		r.Get("/transitions/{id}", s.getTransition)
	})

	s.httpServer = httptest.NewServer(r)
	s.URL = s.httpServer.URL
	return s
}

// Close shuts the server down.
func (s *Server) Close() { s.httpServer.Close() }

// Requests reports how many requests the server has received.
func (s *Server) Requests() int64 { return s.requests.Load() }

// SeedComponent registers a component and a matching power status entry.
func (s *Server) SeedComponent(c types.Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[c.ID] = c
	if _, ok := s.power[c.ID]; !ok {
		s.power[c.ID] = types.PowerStatus{XName: c.ID, PowerState: "on", ManagementState: "available"}
	}
}

// SeedGroup registers a group.
func (s *Server) SeedGroup(g types.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := g
	s.groups[g.Label] = &copied
}

// SeedBootParameters registers a boot parameter record.
func (s *Server) SeedBootParameters(bp types.BootParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootParams = append(s.bootParams, bp)
}

// SetPowerState overrides the power state reported for one xname.
func (s *Server) SetPowerState(xname, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power[xname] = types.PowerStatus{XName: xname, PowerState: state, ManagementState: "available"}
}

// DropConnectionFor makes every request naming the xname fail by severing
// the connection mid-request, so clients observe a transport error rather
// than an HTTP status.
func (s *Server) DropConnectionFor(xname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropHosts[xname] = struct{}{}
}

// StallFor delays every request naming the xname by d before handling it,
// for exercising per-request timeouts.
func (s *Server) StallFor(xname string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stallHosts[xname] = d
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)

		s.mu.Lock()
		drop := s.shouldDropLocked(r)
		stall := s.stallDelayLocked(r)
		s.mu.Unlock()
		if stall > 0 {
			time.Sleep(stall)
		}
		if drop {
			hj, ok := w.(http.Hijacker)
			if !ok {
				panic("testserver: response writer is not hijackable")
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) shouldDropLocked(r *http.Request) bool {
	for host := range s.dropHosts {
		if requestNames(r, host) {
			return true
		}
	}
	return false
}

func (s *Server) stallDelayLocked(r *http.Request) time.Duration {
	for host, d := range s.stallHosts {
		if requestNames(r, host) {
			return d
		}
	}
	return 0
}

func requestNames(r *http.Request, host string) bool {
	return strings.Contains(r.URL.RawQuery, host) || strings.Contains(r.URL.Path, host)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func (s *Server) listComponents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	nidFilter := make(map[string]struct{})
	for _, nid := range q["nid"] {
		nidFilter[nid] = struct{}{}
	}

	var out types.ComponentArray
	for _, c := range s.components {
		if t := q.Get("type"); t != "" && !strings.EqualFold(c.Type, t) {
			continue
		}
		if id := q.Get("id"); id != "" && c.ID != id {
			continue
		}
		if len(nidFilter) > 0 {
			if c.NID == nil {
				continue
			}
			if _, ok := nidFilter[fmt.Sprintf("%d", *c.NID)]; !ok {
				continue
			}
		}
		out.Components = append(out.Components, c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getComponent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	xname := chi.URLParam(r, "xname")
	c, ok := s.components[xname]
	if !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such component %s", xname))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) createComponents(w http.ResponseWriter, r *http.Request) {
	var body types.ComponentPostArray
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range body.Components {
		s.components[c.ID] = c
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteComponent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	xname := chi.URLParam(r, "xname")
	if _, ok := s.components[xname]; !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such component %s", xname))
		return
	}
	delete(s.components, xname)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Group, 0, len(s.groups))
	for _, g := range s.groups {
		if label := r.URL.Query().Get("group"); label != "" && g.Label != label {
			continue
		}
		out = append(out, *g)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var g types.Group
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[g.Label]; exists {
		writeProblem(w, http.StatusConflict, fmt.Sprintf("group %s already exists", g.Label))
		return
	}
	s.groups[g.Label] = &g
	writeJSON(w, http.StatusCreated, []string{"/hsm/v2/groups/" + g.Label})
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := chi.URLParam(r, "label")
	g, ok := s.groups[label]
	if !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such group %s", label))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := chi.URLParam(r, "label")
	if _, ok := s.groups[label]; !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such group %s", label))
		return
	}
	delete(s.groups, label)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) groupMembers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := chi.URLParam(r, "label")
	g, ok := s.groups[label]
	if !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such group %s", label))
		return
	}
	members := types.Members{}
	if g.Members != nil {
		members = *g.Members
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) addGroupMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	label := chi.URLParam(r, "label")
	g, ok := s.groups[label]
	if !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such group %s", label))
		return
	}
	if g.Members == nil {
		g.Members = &types.Members{}
	}
	for _, id := range g.Members.IDs {
		if id == body.ID {
			writeProblem(w, http.StatusConflict, fmt.Sprintf("%s is already a member", body.ID))
			return
		}
	}
	g.Members.IDs = append(g.Members.IDs, body.ID)
	writeJSON(w, http.StatusCreated, []string{"/hsm/v2/groups/" + label + "/members/" + body.ID})
}

func (s *Server) deleteGroupMember(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := chi.URLParam(r, "label")
	xname := chi.URLParam(r, "xname")
	g, ok := s.groups[label]
	if !ok || g.Members == nil {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such group %s", label))
		return
	}
	for i, id := range g.Members.IDs {
		if id == xname {
			g.Members.IDs = append(g.Members.IDs[:i], g.Members.IDs[i+1:]...)
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	writeProblem(w, http.StatusNotFound, fmt.Sprintf("%s is not a member of %s", xname, label))
}

func (s *Server) getBootParams(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := r.URL.Query()["name"]
	if len(names) == 0 {
		writeJSON(w, http.StatusOK, s.bootParams)
		return
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	out := make([]types.BootParameters, 0)
	for _, bp := range s.bootParams {
		for _, host := range bp.Hosts {
			if _, ok := wanted[host]; ok {
				out = append(out, bp)
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) putBootParams(w http.ResponseWriter, r *http.Request) {
	var bp types.BootParameters
	if err := json.NewDecoder(r.Body).Decode(&bp); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootParams = append(s.bootParams, bp)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteBootParams(w http.ResponseWriter, r *http.Request) {
	var bp types.BootParameters
	if err := json.NewDecoder(r.Body).Decode(&bp); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	wanted := make(map[string]struct{}, len(bp.Hosts))
	for _, host := range bp.Hosts {
		wanted[host] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.bootParams[:0]
	for _, record := range s.bootParams {
		matched := false
		for _, host := range record.Hosts {
			if _, ok := wanted[host]; ok {
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, record)
		}
	}
	s.bootParams = kept
	w.WriteHeader(http.StatusOK)
}

func (s *Server) powerStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var envelope types.PowerStatusEnvelope
	xnames := r.URL.Query()["xname"]
	if len(xnames) == 0 {
		for _, st := range s.power {
			envelope.Status = append(envelope.Status, st)
		}
		writeJSON(w, http.StatusOK, envelope)
		return
	}

	for _, xname := range xnames {
		st, ok := s.power[xname]
		if !ok {
			writeProblem(w, http.StatusNotFound, fmt.Sprintf("no power status for %s", xname))
			return
		}
		envelope.Status = append(envelope.Status, st)
	}
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) createTransition(w http.ResponseWriter, r *http.Request) {
	var body types.TransitionCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Location) == 0 {
		writeProblem(w, http.StatusBadRequest, "transition has no locations")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, loc := range body.Location {
		if _, ok := s.power[loc.Xname]; !ok {
			writeProblem(w, http.StatusBadRequest, fmt.Sprintf("unknown xname %s", loc.Xname))
			return
		}
	}

	id := fmt.Sprintf("transition-%d", s.transSeq.Add(1))
	transition := types.Transition{
		TransitionID: id,
		Operation:    body.Operation,
		Status:       "new",
	}
	for _, loc := range body.Location {
		transition.Tasks = append(transition.Tasks, types.TransitionTask{
			Xname:      loc.Xname,
			TaskStatus: "new",
		})
	}
	s.transitions[id] = transition
	writeJSON(w, http.StatusOK, transition)
}

// SeedHardware registers a raw hardware inventory fragment for one xname.
func (s *Server) SeedHardware(xname string, fragment json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hardware[xname] = fragment
}

// SeedEthernetInterface registers an ethernet interface record.
func (s *Server) SeedEthernetInterface(ei types.EthernetInterface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ethernet = append(s.ethernet, ei)
}

func (s *Server) hardwareInventory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id := r.URL.Query().Get("id"); id != "" {
		fragment, ok := s.hardware[id]
		if !ok {
			writeProblem(w, http.StatusNotFound, fmt.Sprintf("no hardware for %s", id))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fragment)
		return
	}

	out := make([]json.RawMessage, 0, len(s.hardware))
	for _, fragment := range s.hardware {
		out = append(out, fragment)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) hardwareQuery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	xname := chi.URLParam(r, "xname")
	fragment, ok := s.hardware[xname]
	if !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no hardware for %s", xname))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(fragment)
}

func (s *Server) listRedfish(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out types.RedfishEndpointArray
	for _, ep := range s.redfish {
		if fqdn := r.URL.Query().Get("fqdn"); fqdn != "" && ep.FQDN != fqdn {
			continue
		}
		out.RedfishEndpoints = append(out.RedfishEndpoints, ep)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addRedfish(w http.ResponseWriter, r *http.Request) {
	var ep types.RedfishEndpoint
	if err := json.NewDecoder(r.Body).Decode(&ep); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.redfish[ep.ID]; exists {
		writeProblem(w, http.StatusConflict, fmt.Sprintf("redfish endpoint %s already exists", ep.ID))
		return
	}
	s.redfish[ep.ID] = ep
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) updateRedfish(w http.ResponseWriter, r *http.Request) {
	var ep types.RedfishEndpoint
	if err := json.NewDecoder(r.Body).Decode(&ep); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := s.redfish[id]; !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such redfish endpoint %s", id))
		return
	}
	s.redfish[id] = ep
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteRedfish(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := s.redfish[id]; !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such redfish endpoint %s", id))
		return
	}
	delete(s.redfish, id)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listEthernet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.EthernetInterface, 0)
	for _, ei := range s.ethernet {
		if mac := r.URL.Query().Get("macaddress"); mac != "" && !strings.EqualFold(ei.MACAddress, mac) {
			continue
		}
		if cid := r.URL.Query().Get("componentid"); cid != "" && ei.ComponentID != cid {
			continue
		}
		out = append(out, ei)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getTransition(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	transition, ok := s.transitions[id]
	if !ok {
		writeProblem(w, http.StatusNotFound, fmt.Sprintf("no such transition %s", id))
		return
	}
	writeJSON(w, http.StatusOK, transition)
}
