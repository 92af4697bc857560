// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package envelope implements the DIDComm v2 wire codec: packing and
// unpacking plaintext, signed, and encrypted messages (component C1).
package envelope

import "encoding/json"

// Message is a plaintext DIDComm message (spec §3).
type Message struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	From        string            `json:"from,omitempty"`
	To          []string          `json:"to,omitempty"`
	Thid        string            `json:"thid,omitempty"`
	Pthid       string            `json:"pthid,omitempty"`
	CreatedTime int64             `json:"created_time,omitempty"`
	ExpiresTime int64             `json:"expires_time,omitempty"`
	Body        json.RawMessage   `json:"body,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	FromPrior   string            `json:"from_prior,omitempty"`
	Extra       map[string]string `json:"-"`
}

// Attachment is the discriminated sum {Base64, Json, Links} from spec §9.
type Attachment struct {
	ID   string          `json:"id,omitempty"`
	Data AttachmentData  `json:"data"`
}

// AttachmentData carries exactly one of Base64, Json, or Links, mirroring
// the wire discriminant (presence of data.base64 / data.json / data.links).
type AttachmentData struct {
	Base64 string          `json:"base64,omitempty"`
	Json   json.RawMessage `json:"json,omitempty"`
	Links  *LinksData      `json:"links,omitempty"`
}

// LinksData is the out-of-line attachment variant.
type LinksData struct {
	URIs []string `json:"uris"`
	Hash string   `json:"hash"`
}

// EnvelopeKind tags the union returned by ParseEnvelope.
type EnvelopeKind int

const (
	KindPlaintext EnvelopeKind = iota
	KindJWS
	KindJWE
)

// Envelope is the tagged union {Jwe, Jws, Plaintext(Message)} from spec §3.
type Envelope struct {
	Kind      EnvelopeKind
	Plaintext *Message
	JWS       *JWS
	JWE       *JWE
	Raw       []byte
}

// UnpackMetadata accumulates what each peeling step learned (spec §3).
type UnpackMetadata struct {
	Encrypted         bool
	Authenticated     bool
	NonRepudiation    bool
	AnonymousSender   bool
	EncAlgAnon        string
	EncAlgAuth        string
	SignAlg           string
	EncryptedFromKid  string
	EncryptedToKids   []string
	SignFrom          string
	FromPriorIssuerKid string
	FromPriorJWT      string
	SignedMessage     []byte
}

// MetaEnvelope is the full result of Unpack.
type MetaEnvelope struct {
	RawMessage []byte
	Envelope   *Envelope
	Metadata   UnpackMetadata
	SHA256Hash string
}
