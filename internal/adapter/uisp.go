package adapter

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"meshinv/internal/domain"
)

// UISP NMS API paths
const (
	uispLoginPath     = "/nms/api/v2.1/user/login"
	uispDevicesPath   = "/nms/api/v2.1/devices"
	uispDataLinksPath = "/nms/api/v2.1/data-links"
	uispTokenHeader   = "x-auth-token"
)

// DefaultUISPTimeout bounds each UISP request
const DefaultUISPTimeout = 30 * time.Second

// UISPConfig configures the UISP client
type UISPConfig struct {
	URL                string
	Username           string
	Password           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// UISPAdapter polls a UISP NMS for devices and data links
type UISPAdapter struct {
	client   *resty.Client
	username string
	password string
	logger   *zap.Logger

	mu    sync.Mutex
	token string
}

// NewUISPAdapter creates a UISP adapter
func NewUISPAdapter(cfg UISPConfig, logger *zap.Logger) (*UISPAdapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("uisp url is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("uisp credentials are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultUISPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.InsecureSkipVerify {
		// UISP appliances commonly serve self-signed certificates
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}

	return &UISPAdapter{
		client:   client,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger.Named("uisp"),
	}, nil
}

// Name implements Adapter
func (a *UISPAdapter) Name() string { return "uisp" }

// Type implements Adapter
func (a *UISPAdapter) Type() AdapterType { return AdapterTypePolling }

// Start implements Adapter
func (a *UISPAdapter) Start(ctx context.Context) error {
	return a.login(ctx)
}

// Stop implements Adapter
func (a *UISPAdapter) Stop() error {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
	return nil
}

// uispDevice is the subset of a UISP device record used for reconciliation
type uispDevice struct {
	Identification struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
		Type     string `json:"type"`
		Model    string `json:"model"`
	} `json:"identification"`
	Overview struct {
		Status       string     `json:"status"`
		CreatedAt    *time.Time `json:"createdAt"`
		LastSeen     *time.Time `json:"lastSeen"`
		WirelessMode string     `json:"wirelessMode"`
	} `json:"overview"`
}

type uispLinkEnd struct {
	Device struct {
		Identification struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"identification"`
	} `json:"device"`
}

// uispDataLink is the subset of a UISP data link record
type uispDataLink struct {
	ID        string      `json:"id"`
	From      uispLinkEnd `json:"from"`
	To        uispLinkEnd `json:"to"`
	State     string      `json:"state"`
	Type      string      `json:"type"`
	Frequency *float64    `json:"frequency"`
}

// Fetch implements Adapter
func (a *UISPAdapter) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	fetchedAt := time.Now().UTC()

	var devices []uispDevice
	if err := a.get(ctx, uispDevicesPath, &devices); err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}
	var links []uispDataLink
	if err := a.get(ctx, uispDataLinksPath, &links); err != nil {
		return nil, fmt.Errorf("fetch data links: %w", err)
	}

	snapshot := &domain.Snapshot{
		Source:    a.Name(),
		FetchedAt: fetchedAt,
		Devices:   make([]domain.ExternalDevice, 0, len(devices)),
		Links:     make([]domain.ExternalLink, 0, len(links)),
	}
	for _, d := range devices {
		snapshot.Devices = append(snapshot.Devices, domain.ExternalDevice{
			ID:           d.Identification.ID,
			Name:         d.Identification.Name,
			Category:     d.Identification.Category,
			Type:         d.Identification.Type,
			Model:        d.Identification.Model,
			Status:       d.Overview.Status,
			CreatedAt:    d.Overview.CreatedAt,
			LastSeen:     d.Overview.LastSeen,
			WirelessMode: d.Overview.WirelessMode,
		})
	}
	for _, l := range links {
		snapshot.Links = append(snapshot.Links, domain.ExternalLink{
			ID:           l.ID,
			FromDeviceID: l.From.Device.Identification.ID,
			ToDeviceID:   l.To.Device.Identification.ID,
			State:        l.State,
			Type:         l.Type,
			Frequency:    l.Frequency,
		})
	}

	a.logger.Debug("fetched uisp inventory",
		zap.Int("devices", len(snapshot.Devices)),
		zap.Int("links", len(snapshot.Links)))
	return snapshot, nil
}

// get decodes path into dest, logging in again once if the token expired
func (a *UISPAdapter) get(ctx context.Context, path string, dest interface{}) error {
	for attempt := 0; ; attempt++ {
		token, err := a.currentToken(ctx)
		if err != nil {
			return err
		}

		resp, err := a.client.R().
			SetContext(ctx).
			SetHeader(uispTokenHeader, token).
			SetResult(dest).
			Get(path)
		if err != nil {
			return fmt.Errorf("request %s: %w", path, err)
		}

		if resp.StatusCode() == http.StatusUnauthorized && attempt == 0 {
			a.logger.Info("uisp token rejected, logging in again")
			a.mu.Lock()
			if a.token == token {
				a.token = ""
			}
			a.mu.Unlock()
			continue
		}
		if resp.IsError() {
			return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode())
		}
		return nil
	}
}

func (a *UISPAdapter) currentToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	token := a.token
	a.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if err := a.login(ctx); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token, nil
}

func (a *UISPAdapter) login(ctx context.Context) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"username": a.username, "password": a.password}).
		Post(uispLoginPath)
	if err != nil {
		return fmt.Errorf("uisp login: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("uisp login: unexpected status %d", resp.StatusCode())
	}

	token := resp.Header().Get(uispTokenHeader)
	if token == "" {
		return fmt.Errorf("uisp login: response carried no %s header", uispTokenHeader)
	}

	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
	a.logger.Debug("logged in to uisp")
	return nil
}
