// internal/fieldset/bind.go
package fieldset

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"strconv"
)

/*
 * Event type identity.
 *
 * The name is <level prefix><md5 hex> over a length-prefixed encoding of
 * (target, level, rebounds, query name, query group, summary). Each value is
 * written as "<len>:<bytes>"; an absent group is written as "-", which no
 * length-prefixed value can collide with, so nil and "" groups differ.
 *
 * rebounds counts forced rebinds. It is part of the digest so Rebind(true)
 * always yields a fresh name, even when the summary has not changed, which
 * is what forces the engine to compile a new type.
 */

// Bind sets the target and level and computes the event type name.
// Returns s for chaining.
func (s *FieldSet) Bind(target string, level Level) *FieldSet {
	s.target = target
	s.level = level
	s.eventTypeName = s.digestName()
	return s
}

// Rebind returns an independent copy. Without force the copy keeps the
// current event type name verbatim; with force it gets a fresh one.
func (s *FieldSet) Rebind(force bool) *FieldSet {
	c := s.Dup()
	if force {
		c.rebounds++
		c.eventTypeName = c.digestName()
	}
	return c
}

// EventTypeName is the bound identity, or "" before Bind.
func (s *FieldSet) EventTypeName() string {
	return s.eventTypeName
}

// Bound reports whether Bind has been called.
func (s *FieldSet) Bound() bool {
	return s.eventTypeName != ""
}

func (s *FieldSet) digestName() string {
	h := md5.New()
	writeTagged(h, s.target)
	writeTagged(h, s.level.String())
	writeTagged(h, strconv.Itoa(s.rebounds))
	if s.query == nil {
		h.Write([]byte("-"))
		h.Write([]byte("-"))
	} else {
		writeTagged(h, s.query.name)
		if s.query.group == nil {
			h.Write([]byte("-"))
		} else {
			writeTagged(h, *s.query.group)
		}
	}
	writeTagged(h, s.summary)
	return s.level.prefix() + hex.EncodeToString(h.Sum(nil))
}

func writeTagged(w io.Writer, v string) {
	w.Write([]byte(strconv.Itoa(len(v))))
	w.Write([]byte(":"))
	w.Write([]byte(v))
}
