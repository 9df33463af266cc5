package push

import (
	"encoding/json"
	"fmt"

	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/pkg/logger"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/push"
	"go.uber.org/zap"
)

// Notifier 支付结果推送
type Notifier interface {
	NotifyAccount(accountID, title, body string, ext map[string]string) error
}

type pushClient interface {
	Push(request *push.PushRequest) (*push.PushResponse, error)
}

type AliyunPushService struct {
	client pushClient
	appKey int64
}

// NewAliyunPushService 配置缺失时返回错误，调用方改用 NopNotifier
func NewAliyunPushService(cfg config.PushConfig) (*AliyunPushService, error) {
	if cfg.AccessKeyID == "" || cfg.AppKey == 0 {
		return nil, fmt.Errorf("push config is missing")
	}

	client, err := push.NewClientWithAccessKey(
		cfg.RegionID,
		cfg.AccessKeyID,
		cfg.AccessKeySecret,
	)
	if err != nil {
		return nil, err
	}

	return &AliyunPushService{
		client: client,
		appKey: cfg.AppKey,
	}, nil
}

// NewNotifier 推送可选，未配置时静默
func NewNotifier(cfg config.PushConfig) Notifier {
	svc, err := NewAliyunPushService(cfg)
	if err != nil {
		logger.Log.Info("aliyun push disabled", zap.Error(err))
		return NopNotifier{}
	}
	return svc
}

func (s *AliyunPushService) NotifyAccount(accountID, title, body string, ext map[string]string) error {
	request := push.CreatePushRequest()
	request.AppKey = requests.NewInteger(int(s.appKey))
	request.Target = "ACCOUNT"
	request.TargetValue = accountID
	request.Title = title
	request.Body = body
	request.DeviceType = "ALL"  // iOS & Android
	request.PushType = "NOTICE" // 通知

	if len(ext) > 0 {
		extJSON, _ := json.Marshal(ext)
		request.AndroidExtParameters = string(extJSON)
		request.IOSExtParameters = string(extJSON)
	}

	_, err := s.client.Push(request)
	return err
}

type NopNotifier struct{}

func (NopNotifier) NotifyAccount(string, string, string, map[string]string) error { return nil }
