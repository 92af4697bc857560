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

package did

import (
	"encoding/base32"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

func b64urlDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// decodeMultibase decodes the subset of multibase prefixes used by
// did:key verification methods: 'z' (base58btc) and 'b' (base32, no pad).
func decodeMultibase(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("did: empty multibase value")
	}
	switch s[0] {
	case 'z':
		return base58.Decode(s[1:])
	case 'b':
		return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s[1:])
	default:
		return nil, fmt.Errorf("did: unsupported multibase prefix %q", s[0])
	}
}
