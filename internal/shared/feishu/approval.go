package feishu

import (
	"context"
	"encoding/json"
	"fmt"
)

// CreateApprovalInstance 发起审批，返回实例code
func (c *Client) CreateApprovalInstance(ctx context.Context, req CreateApprovalInstanceReq) (string, error) {
	var resp CreateApprovalInstanceResponse
	if err := c.doRequest(ctx, "POST", "/open-apis/approval/v4/instances", req, &resp); err != nil {
		return "", fmt.Errorf("create approval instance: %w", err)
	}
	return resp.Data.InstanceCode, nil
}

// GetApprovalInstance 查询审批实例
func (c *Client) GetApprovalInstance(ctx context.Context, instanceCode string) (*ApprovalInstance, error) {
	var resp GetApprovalInstanceResponse
	if err := c.doRequest(ctx, "GET", "/open-apis/approval/v4/instances/"+instanceCode, nil, &resp); err != nil {
		return nil, fmt.Errorf("get approval instance: %w", err)
	}
	return &resp.Data, nil
}

// GoldSealApprovals 金封样确认书审批：按固定审批定义发起，并查询结果
type GoldSealApprovals struct {
	client       *Client
	approvalCode string
}

func NewGoldSealApprovals(client *Client, approvalCode string) *GoldSealApprovals {
	return &GoldSealApprovals{client: client, approvalCode: approvalCode}
}

// ApprovalCode 审批定义code
func (g *GoldSealApprovals) ApprovalCode() string {
	return g.approvalCode
}

// Start 以提交人身份发起确认书审批
func (g *GoldSealApprovals) Start(ctx context.Context, submitterOpenID, styleCode, styleName string) (string, error) {
	form, err := json.Marshal([]map[string]string{
		{"id": "style_code", "type": FieldTypeText, "value": styleCode},
		{"id": "style_name", "type": FieldTypeText, "value": styleName},
	})
	if err != nil {
		return "", fmt.Errorf("encode approval form: %w", err)
	}
	return g.client.CreateApprovalInstance(ctx, CreateApprovalInstanceReq{
		ApprovalCode: g.approvalCode,
		OpenID:       submitterOpenID,
		FormData:     string(form),
	})
}

// Status 查询审批实例状态（APPROVED/REJECTED/...）
func (g *GoldSealApprovals) Status(ctx context.Context, instanceCode string) (string, error) {
	instance, err := g.client.GetApprovalInstance(ctx, instanceCode)
	if err != nil {
		return "", err
	}
	return instance.Status, nil
}
