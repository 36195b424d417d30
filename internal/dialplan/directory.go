package dialplan

import (
	"context"
	"crypto/md5"
	"fmt"

	"github.com/routepbx/routepbx/internal/fsxml"
	"github.com/routepbx/routepbx/internal/tenant"
)

// dialString lets the switch locate a registered contact for the dialed
// user while preserving presence and the invite domain.
const dialString = `{^^:sip_invite_domain=${dialed_domain}:presence_id=${dialed_user}@${dialed_domain}}${sofia_contact(*/${dialed_user}@${dialed_domain})}`

// Directory answers a directory-section lookup for a registering or dialed
// user. Unknown tenants and users produce a not-found result so the switch
// falls back to its static directory.
func (e *Engine) Directory(ctx context.Context, user, domain string) (*fsxml.Document, error) {
	tn, realm, err := e.tenants.Resolve(ctx, tenant.Query{Domain: domain, UserID: user})
	if err != nil {
		return nil, err
	}
	if tn == nil {
		return fsxml.NotFound(), nil
	}

	ext, err := e.store.Extensions.GetByTenantAndNumber(ctx, tn.ID, user)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return fsxml.NotFound(), nil
	}

	a1 := md5.Sum([]byte(user + ":" + realm + ":" + ext.Password))

	doc := fsxml.NewDocument()
	doc.Sections = append(doc.Sections, fsxml.Section{
		Name: "directory",
		Domain: &fsxml.Domain{
			Name: realm,
			Users: []fsxml.User{{
				ID: user,
				Params: []fsxml.Param{
					{Name: "password", Value: ext.Password},
					{Name: "a1-hash", Value: fmt.Sprintf("%x", a1)},
					{Name: "dial-string", Value: dialString},
				},
				Variables: []fsxml.Variable{
					{Name: "user_context", Value: fmt.Sprintf("context_%d", tn.ID)},
				},
			}},
		},
	})
	return doc, nil
}
