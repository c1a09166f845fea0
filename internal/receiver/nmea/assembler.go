package nmea

import (
	"slices"
	"strconv"
	"time"

	gonmea "github.com/adrianmo/go-nmea"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/receiver"
)

// DefaultStaleAfter is how long a talker's satellites stay in the snapshot
// without a fresh GSV sequence.
const DefaultStaleAfter = 10 * time.Second

// WithStaleAfter sets how long a talker's view is kept without updates. Zero
// keeps views forever.
func WithStaleAfter(d time.Duration) func(*Assembler) {
	return func(a *Assembler) {
		a.staleAfter = d
	}
}

// WithClock sets the wall clock used until the receiver reports a date.
func WithClock(now func() time.Time) func(*Assembler) {
	return func(a *Assembler) {
		a.now = now
	}
}

type satKey struct {
	constellation gnss.Constellation
	id            int
}

type usedKey struct {
	talker        string
	constellation gnss.Constellation
}

type talkerView struct {
	satellites []gnss.Satellite
	updated    time.Time
}

type gsvSequence struct {
	next       int64
	satellites []gnss.Satellite
}

// Assembler turns a stream of NMEA sentences into receiver events.
//
// GSV sequences are assembled per talker; when a talker completes a sequence
// the views of all talkers are merged into one snapshot ordered GPS, GLONASS,
// Galileo, Other. GSA sentences mark satellites used in the fix. GGA with a
// valid fix yields a location. RMC supplies the date.
type Assembler struct {
	now        func() time.Time
	staleAfter time.Duration

	clock   time.Time
	views   map[string]talkerView
	pending map[string]*gsvSequence
	used    map[usedKey]map[satKey]struct{}
}

// NewAssembler creates an empty Assembler.
func NewAssembler(options ...func(*Assembler)) *Assembler {
	a := Assembler{
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
		views:      make(map[string]talkerView),
		pending:    make(map[string]*gsvSequence),
		used:       make(map[usedKey]map[satKey]struct{}),
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Feed applies a sentence and returns the events it completes, if any.
func (a *Assembler) Feed(s gonmea.Sentence) []receiver.Event {
	switch v := s.(type) {
	case gonmea.RMC:
		a.setDate(v.Date, v.Time)

	case gonmea.GSA:
		a.setUsed(v)

	case gonmea.GSV:
		return a.feedGSV(v)

	case gonmea.GGA:
		return a.feedGGA(v)
	}

	return nil
}

func (a *Assembler) timestamp() time.Time {
	if !a.clock.IsZero() {
		return a.clock
	}
	return a.now().UTC()
}

func (a *Assembler) setDate(d gonmea.Date, t gonmea.Time) {
	if !d.Valid || !t.Valid {
		return
	}
	a.clock = time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

// setTimeOfDay moves the clock to the given time of day, rolling over midnight.
func (a *Assembler) setTimeOfDay(t gonmea.Time) {
	if !t.Valid || a.clock.IsZero() {
		return
	}

	y, m, d := a.clock.Date()
	next := time.Date(y, m, d, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
	if a.clock.Sub(next) > 12*time.Hour {
		next = next.AddDate(0, 0, 1)
	}
	a.clock = next
}

func (a *Assembler) setUsed(v gonmea.GSA) {
	talker := v.TalkerID()

	var ids []int
	for _, sv := range v.SV {
		id, err := strconv.Atoi(sv)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		if v.FixType == gonmea.FixNone {
			for key := range a.used {
				if key.talker == talker {
					delete(a.used, key)
				}
			}
		}
		return
	}

	// Multi-constellation receivers send one GSA per system under the same talker
	first, _ := classify(talker, ids[0])
	set := make(map[satKey]struct{}, len(ids))
	for _, id := range ids {
		c, sid := classify(talker, id)
		set[satKey{c, sid}] = struct{}{}
	}
	a.used[usedKey{talker, first}] = set
}

func (a *Assembler) isUsed(c gnss.Constellation, id int) bool {
	for _, set := range a.used {
		if _, ok := set[satKey{c, id}]; ok {
			return true
		}
	}
	return false
}

func (a *Assembler) feedGSV(v gonmea.GSV) []receiver.Event {
	talker := v.TalkerID()

	if v.MessageNumber == 1 {
		a.pending[talker] = &gsvSequence{next: 1}
	}

	seq, ok := a.pending[talker]
	if !ok || seq.next != v.MessageNumber {
		delete(a.pending, talker) // out of sequence, wait for the next first message
		return nil
	}

	for _, info := range v.Info {
		if info.SVPRNNumber <= 0 {
			continue
		}

		c, id := classify(talker, int(info.SVPRNNumber))
		seq.satellites = append(seq.satellites, gnss.Satellite{
			ID:            id,
			Constellation: c,
			Azimuth:       float64(info.Azimuth),
			Elevation:     float64(info.Elevation),
			SignalDBHz:    float64(info.SNR),
		})
	}
	seq.next++

	if v.MessageNumber < v.TotalMessages {
		return nil
	}

	ts := a.timestamp()
	a.views[talker] = talkerView{satellites: seq.satellites, updated: ts}
	delete(a.pending, talker)

	return []receiver.Event{{
		Kind:       receiver.SatelliteStatus,
		Timestamp:  ts,
		Satellites: a.snapshot(ts),
	}}
}

func (a *Assembler) feedGGA(v gonmea.GGA) []receiver.Event {
	a.setTimeOfDay(v.Time)

	if v.FixQuality == "" || v.FixQuality == gonmea.Invalid {
		return nil
	}

	ts := a.timestamp()
	return []receiver.Event{{
		Kind:      receiver.LocationFix,
		Timestamp: ts,
		Location: &gnss.Location{
			Timestamp: ts,
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
			Altitude:  v.Altitude,
		},
	}}
}

// snapshot merges the views of all talkers.
func (a *Assembler) snapshot(ts time.Time) []gnss.Satellite {
	talkers := make([]string, 0, len(a.views))
	for talker, view := range a.views {
		if a.staleAfter > 0 && ts.Sub(view.updated) > a.staleAfter {
			delete(a.views, talker)
			continue
		}
		talkers = append(talkers, talker)
	}
	slices.Sort(talkers)

	seen := make(map[satKey]struct{})
	var satellites []gnss.Satellite
	for _, talker := range talkers {
		for _, s := range a.views[talker].satellites {
			key := satKey{s.Constellation, s.ID}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			s.UsedInFix = a.isUsed(s.Constellation, s.ID)
			satellites = append(satellites, s)
		}
	}

	slices.SortStableFunc(satellites, func(x, y gnss.Satellite) int {
		return rank(x.Constellation) - rank(y.Constellation)
	})
	return satellites
}

func rank(c gnss.Constellation) int {
	if i := slices.Index(gnss.Constellations, c); i >= 0 {
		return i
	}
	return len(gnss.Constellations)
}

// classify maps a talker and NMEA satellite number onto a constellation. GN
// (combined) talkers are resolved by the NMEA numbering ranges.
func classify(talker string, prn int) (gnss.Constellation, int) {
	switch talker {
	case "GP":
		if prn >= 1 && prn <= 32 {
			return gnss.ConstellationGPS, prn
		}
		return gnss.ConstellationOther, prn

	case "GL":
		return gnss.ConstellationGLONASS, prn

	case "GA":
		return gnss.ConstellationGalileo, prn

	case "GN":
		switch {
		case prn >= 1 && prn <= 32:
			return gnss.ConstellationGPS, prn
		case prn >= 65 && prn <= 96:
			return gnss.ConstellationGLONASS, prn
		case prn >= 301 && prn <= 336:
			return gnss.ConstellationGalileo, prn - 300
		}
	}

	return gnss.ConstellationOther, prn
}
