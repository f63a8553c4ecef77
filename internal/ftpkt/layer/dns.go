package layer

import (
	"net"

	"github.com/google/gopacket"
	"github.com/miekg/dns"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
	"github.com/CESNET/ft-generator/internal/ftpkt/dnsname"
	"github.com/CESNET/ft-generator/internal/ftrand"
)

// DNS is the Dns upper layer substituting for Payload on UDP/53 flows,
// grounded on original_source/tools/ft-generator/src/layers/dns.{h,cpp}
// and built with miekg/dns (the teacher vendors it for its own DNS
// services, per DESIGN.md).
//
// It pairs up request (Forward) and response (Reverse) packets 1:1 in
// list order and, for each pair, analytically picks a record mix that
// makes the serialized message land on an exact target length derived
// from the flow's average bytes/packet. A pair that can't be hit falls
// back to the flow-wide randomPayload flag, after which every DNS packet
// degrades to plain random bytes (§4.4).
type DNS struct {
	index int

	randomPayload bool
	plans         []dnsPlan
}

type dnsStrategy int

const (
	dnsStrategyUncompressed dnsStrategy = iota
	dnsStrategyCompressed
	dnsStrategyCNAME
	dnsStrategyTXT
)

type dnsPlan struct {
	txID      uint16
	domain    string
	useAAAA   bool
	strategy  dnsStrategy
	txtChunks []int
}

const dnsHeaderLen = 12

func NewDNS() *DNS { return &DNS{} }

func (d *DNS) AddedToFlow(f *flow.Flow, index int) { d.index = index }

// PlanFlow alternates every packet Forward/Reverse as a query/response
// exchange (§4.4); PostPlanFlow needs directions already assigned to pair
// requests up with responses. It doesn't know exact sizes yet, so it
// leaves Size alone.
func (d *DNS) PlanFlow(f *flow.Flow) {
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

// PostPlanFlow pairs up request/response packets and analytically plans
// each exchange (§4.4).
func (d *DNS) PostPlanFlow(f *flow.Flow) {
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
		d.randomPayload = true
		return
	}

	avgQuery := int(f.FwdBytes) / pairs
	avgResponse := int(f.RevBytes) / pairs

	for i := 0; i < pairs; i++ {
		req, resp := requests[i], responses[i]
		plan, ok := d.planExchange(f, req.Size, resp.Size, avgQuery, avgResponse)
		if !ok {
			d.randomPayload = true
			return
		}

		idx := len(d.plans)
		d.plans = append(d.plans, plan)

		req.Params[d.index] = flow.LayerParam{Valid: true, Value: uint64(idx)}
		resp.Params[d.index] = flow.LayerParam{Valid: true, Value: uint64(idx)}

		queryLen := dnsQueryLen(len(plan.domain))
		respLen := dnsResponseLen(plan)

		req.Size = req.Size + uint64(queryLen)
		resp.Size = resp.Size + uint64(respLen)
		req.IsFinished = true
		resp.IsFinished = true
	}
}

// planExchange derives a target DNS message length for each side from
// the flow's average bytes/packet (the actual per-packet header-only
// size is already reflected in reqHeaderSize/respHeaderSize) and picks a
// record strategy that lands exactly on it.
func (d *DNS) planExchange(f *flow.Flow, reqHeaderSize, respHeaderSize uint64, avgQuery, avgResponse int) (dnsPlan, bool) {
	queryTarget := avgQuery - int(reqHeaderSize)
	domainLen := queryTarget - dnsQueryOverhead() - 2
	if domainLen < 4 {
		return dnsPlan{}, false
	}
	if domainLen > 253 {
		domainLen = 253
	}

	name, err := dnsname.Generate(f.Rand, domainLen)
	if err != nil {
		return dnsPlan{}, false
	}

	plan := dnsPlan{
		txID:    uint16(f.Rand.Uint64n(0, 65535)),
		domain:  name,
		useAAAA: f.Rand.Float64() < 0.5,
	}

	if dnsQueryLen(len(plan.domain)) != queryTarget {
		return dnsPlan{}, false
	}

	responseTarget := avgResponse - int(respHeaderSize)
	if responseTarget < dnsHeaderLen+len(plan.domain)+2+4 {
		return dnsPlan{}, false
	}

	for _, strat := range []dnsStrategy{dnsStrategyUncompressed, dnsStrategyCompressed, dnsStrategyCNAME} {
		plan.strategy = strat
		if dnsResponseLen(plan) == responseTarget {
			return plan, true
		}
	}

	plan.strategy = dnsStrategyTXT
	fixedLen := dnsResponseFixedLenTXT(plan)
	txtBytesNeeded := responseTarget - fixedLen
	if txtBytesNeeded < 0 {
		return dnsPlan{}, false
	}
	plan.txtChunks = splitTXTChunks(f.Rand, txtBytesNeeded)
	if dnsResponseLen(plan) != responseTarget {
		return dnsPlan{}, false
	}
	return plan, true
}

// dnsQueryOverhead is the fixed bytes in a question-only query besides
// the question name itself: header + qtype + qclass.
func dnsQueryOverhead() int { return dnsHeaderLen + 2 + 2 }

func dnsQueryLen(domainLen int) int { return dnsQueryOverhead() + domainLen + 2 }

// answerRData returns the A/AAAA rdata length for the chosen record type.
func answerRData(useAAAA bool) int {
	if useAAAA {
		return 16
	}
	return 4
}

func dnsResponseLen(p dnsPlan) int {
	questionLen := len(p.domain) + 2 + 2 + 2 // qname + type + class
	base := dnsHeaderLen + questionLen

	switch p.strategy {
	case dnsStrategyUncompressed:
		return base + (len(p.domain) + 2) + 2 + 2 + 4 + 2 + answerRData(p.useAAAA)
	case dnsStrategyCompressed:
		return base + 2 + 2 + 2 + 4 + 2 + answerRData(p.useAAAA)
	case dnsStrategyCNAME:
		return base + 2 + 2 + 2 + 4 + 2 + 2
	case dnsStrategyTXT:
		total := base
		for _, chunk := range p.txtChunks {
			total += 2 + 2 + 2 + 4 + 2 + 1 + chunk
		}
		return total
	}
	return base
}

func dnsResponseFixedLenTXT(p dnsPlan) int {
	p.txtChunks = nil
	questionLen := len(p.domain) + 2 + 2 + 2
	return dnsHeaderLen + questionLen
}

// splitTXTChunks splits need bytes of TXT answer records into chunk
// payload lengths, one per record. Each record costs 13 fixed bytes (name
// pointer + type + class + ttl + rdlength + string-length byte) plus a
// payload of at most 255 bytes; the record count is chosen uniformly
// between the fewest records that fit and one record per 13 bytes, and the
// rest is spread evenly over the chunks. It returns nil when need is below
// one record's fixed cost.
func splitTXTChunks(r *ftrand.Rand, need int) []int {
	const perRecordOverhead = 2 + 2 + 2 + 4 + 2 + 1 // name ptr + type + class + ttl + rdlength + string-length byte
	const maxChunk = 255
	if need < perRecordOverhead {
		return nil
	}

	minRecords := (need + perRecordOverhead + maxChunk - 1) / (perRecordOverhead + maxChunk)
	if minRecords < 1 {
		minRecords = 1
	}
	n := minRecords + int(r.Uint64n(0, uint64(need/perRecordOverhead-minRecords)))
	remaining := need - n*perRecordOverhead
	chunks := make([]int, n)
	for i := 0; i < n; i++ {
		per := remaining / (n - i)
		if per > maxChunk {
			per = maxChunk
		}
		chunks[i] = per
		remaining -= per
	}
	if remaining != 0 {
		chunks[len(chunks)-1] += remaining
	}
	return chunks
}

func (d *DNS) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}
	if d.randomPayload || !pkt.Params[d.index].Valid {
		if pb.Remaining > 0 {
			pb.Append(gopacket.Payload(f.Rand.Bytes(int(pb.Remaining))))
			pb.Consume(int(pb.Remaining))
		}
		return
	}

	plan := d.plans[pkt.Params[d.index].Value]
	qtype := uint16(dns.TypeA)
	if plan.useAAAA {
		qtype = dns.TypeAAAA
	}

	msg := new(dns.Msg)
	msg.Id = plan.txID
	msg.Compress = plan.strategy != dnsStrategyUncompressed
	msg.Question = []dns.Question{{Name: dns.Fqdn(plan.domain), Qtype: qtype, Qclass: dns.ClassINET}}

	if pkt.Direction == flow.Reverse {
		msg.Response = true
		msg.Answer = d.buildAnswers(f, plan, qtype)
	} else {
		msg.RecursionDesired = true
	}

	raw, err := msg.Pack()
	if err != nil {
		panic("ftpkt/layer: dns: pack message: " + err.Error())
	}

	pb.Append(gopacket.Payload(raw))
	pb.Consume(len(raw))
}

func (d *DNS) buildAnswers(f *flow.Flow, plan dnsPlan, qtype uint16) []dns.RR {
	hdr := dns.RR_Header{Name: dns.Fqdn(plan.domain), Rrtype: qtype, Class: dns.ClassINET, Ttl: 300}

	switch plan.strategy {
	case dnsStrategyUncompressed, dnsStrategyCompressed:
		if plan.useAAAA {
			hdr.Rrtype = dns.TypeAAAA
			return []dns.RR{&dns.AAAA{Hdr: hdr, AAAA: net.IP(f.Rand.Bytes(16))}}
		}
		hdr.Rrtype = dns.TypeA
		return []dns.RR{&dns.A{Hdr: hdr, A: net.IP(f.Rand.Bytes(4))}}
	case dnsStrategyCNAME:
		hdr.Rrtype = dns.TypeCNAME
		return []dns.RR{&dns.CNAME{Hdr: hdr, Target: dns.Fqdn(plan.domain)}}
	case dnsStrategyTXT:
		hdr.Rrtype = dns.TypeTXT
		rrs := make([]dns.RR, len(plan.txtChunks))
		for i, n := range plan.txtChunks {
			b := f.Rand.Bytes(n)
			for j := range b {
				if b[j] == '\\' { // packed as an escape, which would shorten the string
					b[j] = '/'
				}
			}
			rrs[i] = &dns.TXT{Hdr: hdr, Txt: []string{string(b)}}
		}
		return rrs
	}
	return nil
}
