package wallet

import (
	"encoding/json"
	"strings"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common/apperr"
	"github.com/pkg/errors"
)

// Type selects the wallet backend.
type Type string

const (
	TypeFileSystem Type = "FILE_SYSTEM"
	TypeInMemory   Type = "IN_MEMORY"
)

// Profile is the wallet configuration document, e.g.
//
//	{"type": "FILE_SYSTEM", "options": {"path": "wallet"}}
type Profile struct {
	Type    Type    `json:"type"`
	Options Options `json:"options"`
}

type Options struct {
	// Path of a FILE_SYSTEM wallet, relative to the resource root.
	Path string `json:"path"`
	// Identities preloaded into an IN_MEMORY wallet.
	Identities []IdentityEntry `json:"identities"`
}

// IdentityEntry is an X.509 identity given inline in the wallet profile.
type IdentityEntry struct {
	Label       string `json:"label"`
	MSPID       string `json:"mspId"`
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"privateKey"`
}

const opParse = "parse wallet profile"

// ParseProfile decodes and validates a wallet profile. The type is matched
// case-insensitively.
func ParseProfile(raw string) (*Profile, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.Errorf(apperr.Configuration, opParse, "", "wallet profile not specified")
	}

	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, apperr.E(apperr.Configuration, opParse, "", errors.Wrap(err, "wallet profile is not valid JSON"))
	}

	p.Type = Type(strings.ToUpper(strings.TrimSpace(string(p.Type))))
	switch p.Type {
	case "":
		return nil, apperr.Errorf(apperr.Configuration, opParse, "", "wallet type not specified")
	case TypeFileSystem:
		if strings.TrimSpace(p.Options.Path) == "" {
			return nil, apperr.Errorf(apperr.Configuration, opParse, "", "no path given for the file system wallet")
		}
	case TypeInMemory:
		for i, e := range p.Options.Identities {
			if e.Label == "" || e.MSPID == "" {
				return nil, apperr.Errorf(apperr.Configuration, opParse, "", "identity %d needs a label and an mspId", i)
			}
		}
	default:
		return nil, apperr.Errorf(apperr.Configuration, opParse, "", "invalid wallet type [%s]", p.Type)
	}
	return &p, nil
}
