// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedImageSchemes はアイキャッチ画像URLで許可されるスキーム。
var allowedImageSchemes = []string{"http", "https"}

// blockedNetworks は内部ネットワークへの到達を防ぐためのブロック範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// ImageURLGuard はアイキャッチ画像URLの検証を提供する。
// 静的な形式検証に加え、設定によっては保存前にHEADリクエストで
// 到達性を確認する。プローブにはsafeurlの安全なクライアントを使い、
// DNS解決後のIPアドレスもDialerレベルで検証されるため
// DNS再バインディング攻撃にも対応する。
type ImageURLGuard struct {
	probe  bool
	client *http.Client
}

// NewImageURLGuard はImageURLGuardを生成する。
// probeがtrueの場合、ValidateImageURLは静的検証に加えて
// 画像URLへHEADリクエストを送信する。
func NewImageURLGuard(probe bool, timeout time.Duration) *ImageURLGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedImageSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &ImageURLGuard{
		probe:  probe,
		client: safeurl.Client(config).Client,
	}
}

// ValidateImageURL は画像URLの安全性を検証する。
// 静的検証はDNS解決を伴わない。プローブ有効時はHEADリクエストで
// 到達性と画像Content-Typeを確認する。
func (g *ImageURLGuard) ValidateImageURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedImageSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
	} else if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}

	if !g.probe {
		return nil
	}
	return g.probeURL(rawURL)
}

// probeURL は画像URLへHEADリクエストを送信し、到達性とContent-Typeを確認する。
func (g *ImageURLGuard) probeURL(rawURL string) error {
	req, err := http.NewRequest(http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("image URL is not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("URL does not point to an image: %s", contentType)
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedImageSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}
