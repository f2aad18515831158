package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAPI 模拟开放平台：令牌、创建与查询审批实例
type fakeOpenAPI struct {
	tokenCalls int32
	created    CreateApprovalInstanceReq
	status     string
}

func (f *fakeOpenAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/open-apis/auth/v3/app_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["app_secret"] != "secret" {
			json.NewEncoder(w).Encode(map[string]interface{}{"code": 10014, "msg": "app secret invalid"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "app_access_token": "t-123", "expire": 7200})
	})
	mux.HandleFunc("/open-apis/approval/v4/instances", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.created))
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "data": map[string]string{"instance_code": "INST-77"}})
	})
	mux.HandleFunc("/open-apis/approval/v4/instances/", func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/open-apis/approval/v4/instances/")
		if code != "INST-77" {
			json.NewEncoder(w).Encode(map[string]interface{}{"code": 1390001, "msg": "instance not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]string{"instance_code": code, "status": f.status},
		})
	})
	return mux
}

func TestGoldSealApprovals(t *testing.T) {
	api := &fakeOpenAPI{status: ApprovalStatusPending}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	client := NewClient("cli_app", "secret", WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))
	approvals := NewGoldSealApprovals(client, "GOLD-SEAL")
	ctx := context.Background()

	instance, err := approvals.Start(ctx, "ou_gt", "STY-2026-0001", "Five pocket")
	require.NoError(t, err)
	assert.Equal(t, "INST-77", instance)
	assert.Equal(t, "GOLD-SEAL", api.created.ApprovalCode)
	assert.Equal(t, "ou_gt", api.created.OpenID)

	var form []map[string]string
	require.NoError(t, json.Unmarshal([]byte(api.created.FormData), &form))
	require.Len(t, form, 2)
	assert.Equal(t, "STY-2026-0001", form[0]["value"])

	status, err := approvals.Status(ctx, instance)
	require.NoError(t, err)
	assert.Equal(t, ApprovalStatusPending, status)

	api.status = ApprovalStatusApproved
	status, err = approvals.Status(ctx, instance)
	require.NoError(t, err)
	assert.Equal(t, ApprovalStatusApproved, status)

	// 令牌被缓存
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.tokenCalls))

	_, err = approvals.Status(ctx, "INST-unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1390001")
}

func TestClient_TokenError(t *testing.T) {
	api := &fakeOpenAPI{}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()

	client := NewClient("cli_app", "wrong", WithBaseURL(server.URL))
	_, err := client.AppAccessToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10014")

	_, err = client.CreateApprovalInstance(context.Background(), CreateApprovalInstanceReq{ApprovalCode: "X"})
	assert.Error(t, err)
}
