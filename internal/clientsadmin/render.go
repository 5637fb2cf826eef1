/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clientsadmin

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hyperledger-labs/bftclients/internal/clients"
	"github.com/hyperledger-labs/bftclients/internal/localconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// PrintConfig writes the effective configuration as YAML.
func PrintConfig(w io.Writer, conf *localconfig.TopLevel) error {
	out, err := yaml.Marshal(conf)
	if err != nil {
		return errors.Wrap(err, "failed marshaling configuration")
	}
	_, err = w.Write(out)
	return err
}

// ClientLayout is the placement of the reserved pages of a client.
type ClientLayout struct {
	ClientID uint16
	Category string
	KeyPage  uint32
	// ReplyPages holds the first page of each reply slot.
	ReplyPages []uint32
}

// Category names the category of a valid client.
func Category(r *clients.Registry, clientID uint16) string {
	switch {
	case r.IsProxy(clientID):
		return "proxy"
	case r.IsExternal(clientID):
		return "external"
	case r.IsClientService(clientID):
		return "client-service"
	case r.IsInternal(clientID):
		return "internal"
	default:
		return "unknown"
	}
}

// Layout returns the page placement of every client in ascending id order.
func Layout(m *clients.Manager) []ClientLayout {
	var layout []ClientLayout
	for _, clientID := range m.Registry().ClientIDs() {
		cl := ClientLayout{
			ClientID: clientID,
			Category: Category(m.Registry(), clientID),
			KeyPage:  m.KeyPageID(clientID),
		}
		for slot := uint16(0); slot < m.MaxReqsPerClient(); slot++ {
			cl.ReplyPages = append(cl.ReplyPages, m.ReplyFirstPageID(clientID, slot))
		}
		layout = append(layout, cl)
	}
	return layout
}

// WriteLayout writes the page layout of the ledger as a table.
func WriteLayout(w io.Writer, l *Ledger) error {
	m := l.Manager
	fmt.Fprintf(w, "pages per request: %d\npages per client: %d\ntotal pages: %d\nreserved in store: %d\n\n",
		m.PagesPerRequest(), m.PagesPerClient(), m.NumberOfRequiredReservedPages(), l.Reserver.TotalPages())

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tCATEGORY\tKEY PAGE\tREPLY SLOTS")
	for _, cl := range Layout(m) {
		slots := make([]string, len(cl.ReplyPages))
		for i, first := range cl.ReplyPages {
			slots[i] = fmt.Sprintf("%d-%d", first, first+m.PagesPerRequest()-1)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", cl.ClientID, cl.Category, cl.KeyPage, strings.Join(slots, " "))
	}
	return tw.Flush()
}

// Inspect writes the public key and persisted replies of every client.
func Inspect(w io.Writer, m *clients.Manager) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tCATEGORY\tKEY\tREPLIES")
	for _, clientID := range m.Registry().ClientIDs() {
		s, _ := m.Summary(clientID)

		key := "-"
		if s.PublicKey != nil {
			key = fmt.Sprintf("%s:%s", s.PublicKey.Format, abbreviate(s.PublicKey.Key, 16))
		}

		replies := "-"
		if len(s.Replies) > 0 {
			refs := make([]string, len(s.Replies))
			for i, ref := range s.Replies {
				refs[i] = fmt.Sprintf("%d@%d", ref.ReqSeqNum, ref.IndexInBatch)
			}
			replies = strings.Join(refs, " ")
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", clientID, Category(m.Registry(), clientID), key, replies)
	}
	return tw.Flush()
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
