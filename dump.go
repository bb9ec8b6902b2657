// dump.go — compiled-signature files.
//
// A dump is a small binary header — the magic string "DKOB" and a big-endian
// format version — followed by a go-json payload: the module name and one
// record per symbol (name, staticity, type, rules), symbols sorted by name
// so dumps are byte-stable. Loading recompiles every rule set locally, so a
// dump never carries decision trees and stays independent of the tree
// layout.
//
// Version checks are strict: a reader only accepts its own version.

package dedukti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

const (
	dumpMagic   = "DKOB"
	dumpVersion = uint32(3)
	dumpExt     = ".dko"
)

type dumpRecord struct {
	Name      QName     `json:"name"`
	Staticity Staticity `json:"staticity"`
	Type      *Term     `json:"type"`
	Rules     []*Rule   `json:"rules,omitempty"`
}

type dumpPayload struct {
	Module  string       `json:"module"`
	Records []dumpRecord `json:"records"`
}

// WriteSignatureDump serialises sg.
func WriteSignatureDump(sg *Signature) ([]byte, error) {
	names := make([]QName, 0, len(sg.table))
	for q := range sg.table {
		names = append(names, q)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Mod != names[j].Mod {
			return names[i].Mod < names[j].Mod
		}
		return names[i].ID < names[j].ID
	})
	payload := dumpPayload{Module: sg.name}
	for _, q := range names {
		rec := sg.table[q]
		payload.Records = append(payload.Records, dumpRecord{
			Name:      rec.name,
			Staticity: rec.staticity,
			Type:      rec.typ,
			Rules:     rec.rules,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("signature dump: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(dumpMagic)
	if err := binary.Write(&buf, binary.BigEndian, dumpVersion); err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// LoadSignatureDump imports every record of a dump into sg, recompiling the
// rule trees. Symbols keep their dumped module qualifier.
func LoadSignatureDump(sg *Signature, data []byte) error {
	if len(data) < len(dumpMagic)+4 || string(data[:len(dumpMagic)]) != dumpMagic {
		return fmt.Errorf("signature dump: bad magic")
	}
	version := binary.BigEndian.Uint32(data[len(dumpMagic) : len(dumpMagic)+4])
	if version != dumpVersion {
		return fmt.Errorf("signature dump: version %d, want %d", version, dumpVersion)
	}
	var payload dumpPayload
	if err := json.Unmarshal(data[len(dumpMagic)+4:], &payload); err != nil {
		return fmt.Errorf("signature dump: %w", err)
	}
	for _, rec := range payload.Records {
		if err := sg.importRecord(rec.Name, rec.Staticity, rec.Type, rec.Rules); err != nil {
			return err
		}
	}
	return nil
}
