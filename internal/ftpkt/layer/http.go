package layer

import (
	"fmt"
	"strconv"

	"github.com/google/gopacket"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
	"github.com/CESNET/ft-generator/internal/ftrand"
)

// httpHeader is one header field in explicit (name, value) order, kept as
// a slice rather than a map so field order is caller-controlled.
// buildMessage renders headers in slice order; renderRequest puts its core
// headers in a fixed order and shuffles only the optional extra headers.
// Header-name capitalization is never varied.
type httpHeader struct {
	Name, Value string
}

// buildMessage renders an HTTP/1.x start line, headers and body exactly
// as given, byte for byte — the literal wire format, no guessing.
func buildMessage(startLine string, headers []httpHeader, body []byte) []byte {
	msg := startLine + "\r\n"
	for _, h := range headers {
		msg += h.Name + ": " + h.Value + "\r\n"
	}
	msg += "\r\n"
	return append([]byte(msg), body...)
}

var optionalRequestHeaders = []httpHeader{
	{Name: "Accept", Value: "text/html,application/xhtml+xml"},
	{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
	{Name: "Cache-Control", Value: "no-cache"},
}

const defaultUserAgent = "ft-generator"

// HTTP is the Http upper layer, grounded on layers/http.{h,cpp}. Like
// DNS, it pairs up request (Forward) and response (Reverse) packets 1:1
// and analytically targets an exact message length per exchange, derived
// from the flow's average bytes/packet; an exchange that can't be hit
// falls back to the flow-wide randomPayload behavior.
type HTTP struct {
	index int

	randomPayload bool
	plans         []httpPlan
}

type httpPlan struct {
	isPost       bool
	url, host    string
	cookie       string
	contentLen   int
	responseBody int
	extraHeaders []httpHeader
}

func NewHTTP() *HTTP { return &HTTP{} }

func (h *HTTP) AddedToFlow(f *flow.Flow, index int) { h.index = index }

// PlanFlow alternates every packet Forward/Reverse as a request/response
// exchange (§4.4); PostPlanFlow needs directions already assigned to pair
// requests up with responses.
func (h *HTTP) PlanFlow(f *flow.Flow) {
	for idx, p := range f.Packets {
		if p.IsFinished || p.IsExtra {
			continue
		}
		if idx%2 == 0 {
			p.Direction = flow.Forward
		} else {
			p.Direction = flow.Reverse
		}
	}
}

func (h *HTTP) PostPlanFlow(f *flow.Flow) {
	var requests, responses []*flow.PlannedPacket
	for _, p := range f.Packets {
		if p.IsFinished || p.IsExtra {
			continue
		}
		if p.Direction == flow.Reverse {
			responses = append(responses, p)
		} else {
			requests = append(requests, p)
		}
	}

	pairs := len(requests)
	if len(responses) < pairs {
		pairs = len(responses)
	}
	if pairs == 0 {
		h.randomPayload = true
		return
	}

	avgReq := int(f.FwdBytes) / pairs
	avgResp := int(f.RevBytes) / pairs

	for i := 0; i < pairs; i++ {
		req, resp := requests[i], responses[i]
		reqTarget := avgReq - int(req.Size)
		respTarget := avgResp - int(resp.Size)

		plan, ok := planRequest(f, reqTarget)
		if !ok {
			h.randomPayload = true
			return
		}
		respBody, ok := planResponseBody(respTarget)
		if !ok {
			h.randomPayload = true
			return
		}
		plan.responseBody = respBody

		idx := len(h.plans)
		h.plans = append(h.plans, plan)

		req.Params[h.index] = flow.LayerParam{Valid: true, Value: uint64(idx)}
		resp.Params[h.index] = flow.LayerParam{Valid: true, Value: uint64(idx)}

		req.Size += uint64(reqTarget)
		resp.Size += uint64(respTarget)
		req.IsFinished = true
		resp.IsFinished = true
	}
}

// planRequest distributes filler across url, host and cookie (§4.4),
// each capped realistically, to land the rendered request exactly on
// target bytes.
func planRequest(f *flow.Flow, target int) (httpPlan, bool) {
	const baseURL = "/"
	const baseHost = "host"
	isPost := f.Rand.Float64() < 0.3

	var extra []httpHeader
	order := f.Rand.Perm(len(optionalRequestHeaders))
	for _, i := range order {
		if f.Rand.Float64() < 0.5 {
			extra = append(extra, optionalRequestHeaders[i])
		}
	}

	base := renderRequest(isPost, baseURL, baseHost, "", 0, extra)
	need := target - len(base)
	if need < 0 {
		extra = nil
		base = renderRequest(isPost, baseURL, baseHost, "", 0, extra)
		need = target - len(base)
		if need < 0 {
			return httpPlan{}, false
		}
	}

	urlFiller := min(need, 40)
	need -= urlFiller
	hostFiller := min(need, 64-len(baseHost))
	need -= hostFiller
	cookieFiller := need

	url := baseURL + string(randomURLChars(f.Rand, urlFiller))
	host := baseHost + string(randomURLChars(f.Rand, hostFiller))
	cookie := ""
	if cookieFiller > 0 {
		cookie = string(randomURLChars(f.Rand, cookieFiller))
	}

	plan := httpPlan{isPost: isPost, url: url, host: host, cookie: cookie, extraHeaders: extra}
	if isPost {
		plan.contentLen = 0
	}

	rendered := renderRequestPlan(plan)
	if len(rendered) != target {
		return httpPlan{}, false
	}
	return plan, true
}

func renderRequest(isPost bool, url, host, cookie string, contentLen int, extra []httpHeader) []byte {
	method := "GET"
	if isPost {
		method = "POST"
	}
	startLine := fmt.Sprintf("%s %s HTTP/1.1", method, url)

	headers := []httpHeader{{Name: "Host", Value: host}}
	headers = append(headers, httpHeader{Name: "User-Agent", Value: defaultUserAgent})
	if cookie != "" {
		headers = append(headers, httpHeader{Name: "Cookie", Value: cookie})
	}
	if isPost {
		headers = append(headers, httpHeader{Name: "Content-Type", Value: "application/x-www-form-urlencoded"})
		headers = append(headers, httpHeader{Name: "Content-Length", Value: strconv.Itoa(contentLen)})
	}
	headers = append(headers, extra...)

	var body []byte
	if isPost && contentLen > 0 {
		body = make([]byte, contentLen)
	}
	return buildMessage(startLine, headers, body)
}

func renderRequestPlan(p httpPlan) []byte {
	return renderRequest(p.isPost, p.url, p.host, p.cookie, p.contentLen, p.extraHeaders)
}

// planResponseBody solves for the body length whose Content-Length
// digit-width is self-consistent with the header it produces, converging
// in at most a couple of iterations.
func planResponseBody(target int) (int, bool) {
	bodyLen := target - len(renderResponse(0))
	for i := 0; i < 4; i++ {
		if bodyLen < 0 {
			return 0, false
		}
		rendered := renderResponse(bodyLen)
		if len(rendered) == target {
			return bodyLen, true
		}
		bodyLen += target - len(rendered)
	}
	return 0, false
}

func renderResponse(bodyLen int) []byte {
	headers := []httpHeader{
		{Name: "Server", Value: "ft-generator"},
		{Name: "Content-Type", Value: "text/html"},
		{Name: "Content-Length", Value: strconv.Itoa(bodyLen)},
	}
	return buildMessage("HTTP/1.1 200 OK", headers, make([]byte, bodyLen))
}

func (h *HTTP) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}
	if h.randomPayload || !pkt.Params[h.index].Valid {
		if pb.Remaining > 0 {
			pb.Append(gopacket.Payload(f.Rand.Bytes(int(pb.Remaining))))
			pb.Consume(int(pb.Remaining))
		}
		return
	}

	plan := h.plans[pkt.Params[h.index].Value]

	var raw []byte
	if pkt.Direction == flow.Reverse {
		raw = renderResponse(plan.responseBody)
	} else {
		raw = renderRequestPlan(plan)
	}

	pb.Append(gopacket.Payload(raw))
	pb.Consume(len(raw))
}

func randomURLChars(r *ftrand.Rand, n int) []byte {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[r.Choice(len(alphabet))]
	}
	return out
}
