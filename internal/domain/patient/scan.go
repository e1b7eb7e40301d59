package patient

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// scanData is what a parse strategy extracts from a scanned payload: a
// patient id plus whatever demographics the token carried.
type scanData struct {
	PatientID uuid.UUID
	FullName  string
	DOB       string
}

// parseStrategy attempts to read a patient reference out of a decoded scan
// value. Strategies never fail loudly; they report ok=false and the chain
// moves on.
type parseStrategy func(value string) (scanData, bool)

// parseIdentityToken handles QR payloads: {"id": "...", "full_name": ...,
// "dob": ...}.
func parseIdentityToken(value string) (scanData, bool) {
	var tok struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
		DOB      string `json:"dob"`
	}
	if err := json.Unmarshal([]byte(value), &tok); err != nil || tok.ID == "" {
		return scanData{}, false
	}
	id, err := uuid.Parse(tok.ID)
	if err != nil {
		return scanData{}, false
	}
	return scanData{PatientID: id, FullName: tok.FullName, DOB: tok.DOB}, true
}

// parseNFCToken handles NFC payloads, which carry the patient id as "pid".
func parseNFCToken(value string) (scanData, bool) {
	var tok struct {
		Pid string `json:"pid"`
	}
	if err := json.Unmarshal([]byte(value), &tok); err != nil || tok.Pid == "" {
		return scanData{}, false
	}
	id, err := uuid.Parse(tok.Pid)
	if err != nil {
		return scanData{}, false
	}
	return scanData{PatientID: id}, true
}

// parseBareID treats the whole value as a patient id.
func parseBareID(value string) (scanData, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		return scanData{}, false
	}
	return scanData{PatientID: id}, true
}

var scanStrategies = []parseStrategy{
	parseIdentityToken,
	parseNFCToken,
	parseBareID,
}

// ResolveScan resolves an opaque scanned payload to a patient. The payload
// may be an encrypted QR/NFC token, a plain structured token, a bare patient
// id, or a legacy physical tag id. Each step is independently failable; only
// the final found/not-found outcome is observable.
func (s *Service) ResolveScan(ctx context.Context, payload string) (*Patient, error) {
	if payload == "" {
		return nil, ErrNotFound
	}

	// Decrypt when possible, otherwise work on the raw payload.
	working := payload
	decrypted := false
	if plaintext, err := s.cipher.Decrypt(payload); err == nil {
		working = string(plaintext)
		decrypted = true
	}

	var data scanData
	var structured, fromToken bool
	for i, parse := range scanStrategies {
		if d, ok := parse(working); ok {
			data = d
			structured = true
			// The JSON strategies (everything before the bare-id
			// fallback) imply a token minted by this system.
			fromToken = i < len(scanStrategies)-1
			break
		}
	}

	if structured {
		p, err := s.repo.GetByID(ctx, data.PatientID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	// Legacy tags stored the physical id directly on the patient row.
	p, err := s.repo.GetByTagID(ctx, payload)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Structured tokens come from a trusted issuer: if the payload carried
	// enough to synthesize the patient, register it and retry. A bare id
	// typed in by hand never auto-creates unless we decrypted it ourselves.
	if structured && (decrypted || fromToken) {
		return s.syncFromScan(ctx, data)
	}
	return nil, ErrNotFound
}

func (s *Service) syncFromScan(ctx context.Context, data scanData) (*Patient, error) {
	p := &Patient{
		ID:       data.PatientID,
		FullName: data.FullName,
		DOB:      data.DOB,
	}
	if p.FullName == "" {
		p.FullName = PlaceholderName
	}
	if p.DOB == "" {
		p.DOB = PlaceholderDOB
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, data.PatientID)
}
