// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bxml

import "github.com/aup3tools/aup3-recover/internal/attrval"

// Attribute is a single name/value pair attached to a StartTag record.
type Attribute struct {
	Name  string
	Value attrval.Value
}

// Sink receives the decoded event stream produced by Parse, in
// document order. Implementations build whatever representation they
// need — a tree, a projection, a textual rendering — without the
// parser knowing about it.
type Sink interface {
	HandleTagStart(name string, attrs []Attribute) error
	HandleTagEnd(name string) error
	HandleCharData(data string) error
}
