// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/envelope"
	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
	"github.com/didcomm-x/mediator/store/memory"
)

func adminInput(t *testing.T, session *store.Session, action, targetDID string) HandlerInput {
	t.Helper()
	body, err := json.Marshal(adminManagementBody{Action: action, DID: targetDID})
	require.NoError(t, err)
	return HandlerInput{
		Session: session,
		Message: &envelope.Message{ID: "1", Type: adminManagementType, Body: body},
	}
}

func seedAdmin(t *testing.T, st store.Store, d did.AgentDID, role store.AdminRole) *store.Session {
	t.Helper()
	hash := did.Hash(d)
	require.NoError(t, st.AddAdmin(context.Background(), &store.AdminAccount{DIDHash: hash, Role: role, AddedAt: time.Now()}))
	return &store.Session{ID: "sess-" + string(d), DID: string(d), DIDHash: hash, State: store.SessionStateAuthenticated}
}

func TestHandleAdminManagementRequiresAdmin(t *testing.T) {
	st := memory.New()
	deps := &Deps{Store: st}
	session := &store.Session{ID: "s1", DID: "did:example:stranger", DIDHash: did.Hash("did:example:stranger"), State: store.SessionStateAuthenticated}

	_, err := handleAdminManagement(context.Background(), deps, adminInput(t, session, "check", "did:example:anyone"))
	require.Error(t, err)
	assert.Equal(t, merr.PermissionError, merr.As(err))
}

func TestHandleAdminManagementAddAndCheck(t *testing.T) {
	st := memory.New()
	deps := &Deps{Store: st}
	root := seedAdmin(t, st, "did:example:root", store.AdminRoleRootAdmin)

	_, err := handleAdminManagement(context.Background(), deps, adminInput(t, root, "add", "did:example:newadmin"))
	require.NoError(t, err)

	resp, err := handleAdminManagement(context.Background(), deps, adminInput(t, root, "check", "did:example:newadmin"))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Ephemeral, &out))
	assert.Equal(t, true, out["is_admin"])
}

func TestHandleAdminManagementOnlyRootAdminCanRemove(t *testing.T) {
	st := memory.New()
	deps := &Deps{Store: st}
	ordinary := seedAdmin(t, st, "did:example:ordinary", store.AdminRoleAdmin)
	seedAdmin(t, st, "did:example:target", store.AdminRoleAdmin)

	_, err := handleAdminManagement(context.Background(), deps, adminInput(t, ordinary, "remove", "did:example:target"))
	require.Error(t, err)
	assert.Equal(t, merr.PermissionError, merr.As(err))

	_, ok, err := st.IsAdmin(context.Background(), did.Hash("did:example:target"))
	require.NoError(t, err)
	assert.True(t, ok, "target should not have been removed by a non-root admin")
}

func TestHandleAdminManagementRootAdminCannotBeRemoved(t *testing.T) {
	st := memory.New()
	deps := &Deps{Store: st}
	root := seedAdmin(t, st, "did:example:root", store.AdminRoleRootAdmin)

	_, err := handleAdminManagement(context.Background(), deps, adminInput(t, root, "remove", "did:example:root"))
	require.Error(t, err)
	assert.Equal(t, merr.PermissionError, merr.As(err))
}

func TestHandleAdminManagementRootAdminRemovesOrdinaryAdmin(t *testing.T) {
	st := memory.New()
	deps := &Deps{Store: st}
	root := seedAdmin(t, st, "did:example:root", store.AdminRoleRootAdmin)
	seedAdmin(t, st, "did:example:target", store.AdminRoleAdmin)

	_, err := handleAdminManagement(context.Background(), deps, adminInput(t, root, "remove", "did:example:target"))
	require.NoError(t, err)

	_, ok, err := st.IsAdmin(context.Background(), did.Hash("did:example:target"))
	require.NoError(t, err)
	assert.False(t, ok)
}
