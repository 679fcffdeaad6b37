// internal/pkg/nacos/client.go
package nacos

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"pulsecart/internal/pkg/logger"
)

// Client 封装了 Nacos 命名客户端
type Client struct {
	namingClient naming_client.INamingClient

	namespaceId string
	groupName   string
}

// NewNacosClient 创建并返回一个新的 Nacos 客户端
// addrs 格式为 "ip1:port1,ip2:port2"
func NewNacosClient(addrs string, namespaceId, groupName string) (*Client, error) {
	if namespaceId == "" {
		logger.Logger().Warn().Msg("⚠️ NACOS_NAMESPACE is not set. Using default public namespace.")
	}
	if groupName == "" {
		groupName = "DEFAULT_GROUP" // Nacos 默认分组
	}

	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid nacos address format: %s", addr)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in nacos address: %s", parts[1])
		}
		serverConfigs = append(serverConfigs, *constant.NewServerConfig(parts[0], port))
	}

	clientConfig := *constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(namespaceId),
	)

	namingClient, err := clients.NewNamingClient(
		vo.NacosClientParam{
			ClientConfig:  &clientConfig,
			ServerConfigs: serverConfigs,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nacos naming client: %w", err)
	}

	logger.Logger().Info().Msg("✅ Successfully connected to Nacos.")
	return &Client{
		namingClient: namingClient,
		namespaceId:  namespaceId,
		groupName:    groupName,
	}, nil
}

// RegisterServiceInstance 将一个服务实例注册到 Nacos
func (c *Client) RegisterServiceInstance(serviceName, ip string, port int) error {
	success, err := c.namingClient.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		GroupName:   c.groupName,
		Weight:      10,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true, // 临时实例，进程退出后自动摘除
	})
	if err != nil {
		return fmt.Errorf("failed to register instance %s: %w", serviceName, err)
	}
	if !success {
		return fmt.Errorf("nacos rejected registration for %s", serviceName)
	}
	logger.Logger().Info().Str("service", serviceName).Str("ip", ip).Int("port", port).Msg("✅ Service registered with Nacos.")
	return nil
}

// DeregisterServiceInstance 从 Nacos 注销一个服务实例
func (c *Client) DeregisterServiceInstance(serviceName, ip string, port int) error {
	success, err := c.namingClient.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		GroupName:   c.groupName,
		Ephemeral:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to deregister instance %s: %w", serviceName, err)
	}
	if !success {
		return fmt.Errorf("nacos rejected deregistration for %s", serviceName)
	}
	return nil
}

// GetServiceInstance 查询一个健康的服务实例地址，供服务间调用使用。
func (c *Client) GetServiceInstance(serviceName string) (string, error) {
	instance, err := c.namingClient.SelectOneHealthyInstance(vo.SelectOneHealthInstanceParam{
		ServiceName: serviceName,
		GroupName:   c.groupName,
	})
	if err != nil {
		return "", fmt.Errorf("no healthy instance for %s: %w", serviceName, err)
	}
	return fmt.Sprintf("%s:%d", instance.Ip, instance.Port), nil
}
