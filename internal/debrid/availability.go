package debrid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/logger"
)

// The instantAvailability endpoint answers in several shapes. They are
// classified into the variants below before any lookup happens.

type documentKind int

const (
	// documentEmpty covers an empty list and any non-container payload.
	documentEmpty documentKind = iota
	// documentObject is {"<hash>": value, ...}.
	documentObject
	// documentWrapped is [{"<hash>": value, ...}, ...]; only the first element counts.
	documentWrapped
)

type valueKind int

const (
	valueAbsent valueKind = iota
	// valueList is [item, ...]; any item may carry the provider entry.
	valueList
	// valueObject is a single item.
	valueObject
	// valueOther is a scalar, which never means downloaded.
	valueOther
)

// availabilityDocument is the classified top level of a response.
type availabilityDocument struct {
	kind  documentKind
	table gjson.Result
}

// classifyDocument decides the top-level variant of body.
func classifyDocument(body []byte) (availabilityDocument, error) {
	if !gjson.ValidBytes(body) {
		return availabilityDocument{}, fmt.Errorf("%w: instantAvailability is not JSON", ErrUnexpectedResponse)
	}
	root := gjson.ParseBytes(body)
	switch {
	case root.IsObject():
		return availabilityDocument{kind: documentObject, table: root}, nil
	case root.IsArray():
		items := root.Array()
		if len(items) == 0 || !items[0].IsObject() {
			return availabilityDocument{kind: documentEmpty}, nil
		}
		return availabilityDocument{kind: documentWrapped, table: items[0]}, nil
	default:
		return availabilityDocument{kind: documentEmpty}, nil
	}
}

// lookup finds the value stored under hash, ignoring key case.
func (d availabilityDocument) lookup(hash domain.InfoHash) (valueKind, gjson.Result) {
	switch d.kind {
	case documentObject, documentWrapped:
	default:
		return valueAbsent, gjson.Result{}
	}

	var found gjson.Result
	ok := false
	d.table.ForEach(func(key, value gjson.Result) bool {
		if hash.Equal(key.String()) {
			found, ok = value, true
			return false
		}
		return true
	})
	if !ok {
		return valueAbsent, gjson.Result{}
	}

	switch {
	case found.IsArray():
		return valueList, found
	case found.IsObject():
		return valueObject, found
	default:
		return valueOther, found
	}
}

// hasProviderEntry reports whether item is an object with a truthy "rd" member.
func hasProviderEntry(item gjson.Result) bool {
	return item.IsObject() && truthy(item.Get("rd"))
}

// truthy follows JSON-ish truthiness: empty containers, empty strings, zero,
// false and null are false.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		return len(r.Map()) > 0
	default:
		return false
	}
}

// ParseAvailability evaluates an instantAvailability response body for hash.
func ParseAvailability(body []byte, hash domain.InfoHash) (domain.Availability, error) {
	doc, err := classifyDocument(body)
	if err != nil {
		return domain.AvailabilityError, err
	}

	kind, value := doc.lookup(hash)
	switch kind {
	case valueList:
		for _, item := range value.Array() {
			if hasProviderEntry(item) {
				return domain.AvailabilityDownloaded, nil
			}
		}
	case valueObject:
		if hasProviderEntry(value) {
			return domain.AvailabilityDownloaded, nil
		}
	case valueAbsent, valueOther:
	}
	return domain.AvailabilityNotAvailable, nil
}

// CheckInstantAvailability asks Real-Debrid whether hash is already
// downloaded on its side. Failures are logged and reported as AvailabilityError.
func (c *Client) CheckInstantAvailability(ctx context.Context, hash domain.InfoHash) domain.Availability {
	endpoint := "/torrents/instantAvailability/" + url.PathEscape(strings.ToLower(hash.String()))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		logger.Errorf("Error while checking torrent status on Real-Debrid: %v", err)
		return domain.AvailabilityError
	}

	availability, err := ParseAvailability(body, hash)
	if err != nil {
		logger.Errorf("Error while checking torrent status on Real-Debrid: %v", err)
		return domain.AvailabilityError
	}
	logger.Debugf("Instant availability for %s: %s", hash, availability)
	return availability
}
