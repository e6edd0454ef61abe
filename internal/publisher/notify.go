package publisher

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = notifyDest + ".Notify"
	closeMethod  = notifyDest + ".CloseNotification"
	closedSignal = notifyDest + ".NotificationClosed"

	urgencyLow byte = 0
)

// Notification is one org.freedesktop.Notifications.Notify request
type Notification struct {
	AppName    string
	ReplacesID uint32
	Icon       string
	Summary    string
	Body       string
	Hints      map[string]dbus.Variant
	Timeout    int32 // milliseconds, 0 never expires
}

// NotificationClient talks to the desktop notification server
type NotificationClient interface {
	Notify(ctx context.Context, n Notification) (uint32, error)
	CloseNotification(ctx context.Context, id uint32) error

	// Closed delivers the id of every notification the server closed.
	// It is closed together with the client.
	Closed() <-chan uint32

	Close() error
}

type busNotifier struct {
	conn   *dbus.Conn
	closed chan uint32
}

// NewSessionNotifier connects to the notification server on the session bus
func NewSessionNotifier() (NotificationClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(notifyPath),
		dbus.WithMatchInterface(notifyDest),
		dbus.WithMatchMember("NotificationClosed"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to add NotificationClosed match signal: %w", err)
	}

	b := &busNotifier{conn: conn, closed: make(chan uint32, 4)}
	signals := make(chan *dbus.Signal, 4)
	conn.Signal(signals)
	go b.forward(signals)
	return b, nil
}

// forward passes closed notification ids on until the connection closes
func (b *busNotifier) forward(signals <-chan *dbus.Signal) {
	defer close(b.closed)
	for sig := range signals {
		if id, ok := closedID(sig); ok {
			b.closed <- id
		}
	}
}

// closedID extracts the notification id from a NotificationClosed signal
func closedID(sig *dbus.Signal) (uint32, bool) {
	if sig == nil || sig.Name != closedSignal || len(sig.Body) < 1 {
		return 0, false
	}
	id, ok := sig.Body[0].(uint32)
	return id, ok && id != 0
}

func (b *busNotifier) Notify(ctx context.Context, n Notification) (uint32, error) {
	var id uint32
	obj := b.conn.Object(notifyDest, notifyPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		n.AppName, n.ReplacesID, n.Icon, n.Summary, n.Body,
		[]string{}, n.Hints, n.Timeout)
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (b *busNotifier) CloseNotification(ctx context.Context, id uint32) error {
	obj := b.conn.Object(notifyDest, notifyPath)
	return obj.CallWithContext(ctx, closeMethod, 0, id).Err
}

func (b *busNotifier) Closed() <-chan uint32 {
	return b.closed
}

func (b *busNotifier) Close() error {
	return b.conn.Close()
}

// tileDoc is the subset of tile markup a notification can show
type tileDoc struct {
	Bindings []struct {
		Template string `xml:"template,attr"`
		Images   []struct {
			Src       string `xml:"src,attr"`
			Placement string `xml:"placement,attr"`
		} `xml:"image"`
		Texts []string `xml:"text"`
	} `xml:"visual>binding"`
}

type tileContent struct {
	Image string
	Texts []string
}

// parseTile picks the binding with the most text and its preferred image
func parseTile(markup string) (tileContent, error) {
	var doc tileDoc
	if err := xml.Unmarshal([]byte(markup), &doc); err != nil {
		return tileContent{}, fmt.Errorf("failed to parse tile markup: %w", err)
	}
	if len(doc.Bindings) == 0 {
		return tileContent{}, fmt.Errorf("tile markup has no binding")
	}

	best := 0
	for i, b := range doc.Bindings {
		if len(b.Texts) > len(doc.Bindings[best].Texts) {
			best = i
		}
	}
	b := doc.Bindings[best]

	var content tileContent
	for _, t := range b.Texts {
		if t = strings.TrimSpace(t); t != "" {
			content.Texts = append(content.Texts, t)
		}
	}

	// The peek image is the foreground art, background images come after it
	for _, img := range b.Images {
		if img.Src != "" && img.Placement == "peek" {
			content.Image = img.Src
			break
		}
	}
	if content.Image == "" {
		for _, img := range b.Images {
			if img.Src != "" {
				content.Image = img.Src
				break
			}
		}
	}
	return content, nil
}

// NotifyPublisher shows the tile as a single resident desktop notification
// that is replaced in place on every publish
type NotifyPublisher struct {
	logger  *zap.Logger
	client  NotificationClient
	appName string

	mu          sync.Mutex
	id          uint32 // id of the notification on screen, 0 if none
	onDismissed func()
}

// NewNotifyPublisher creates a notification publisher for appName
func NewNotifyPublisher(logger *zap.Logger, client NotificationClient, appName string) *NotifyPublisher {
	p := &NotifyPublisher{
		logger:  logger,
		client:  client,
		appName: appName,
	}
	if closed := client.Closed(); closed != nil {
		go p.watch(closed)
	}
	return p
}

// OnDismissed registers fn to run when the server closes the shown
// notification on its own, for instance because the user dismissed it
func (p *NotifyPublisher) OnDismissed(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDismissed = fn
}

// watch forgets the shown notification once the server closed it
func (p *NotifyPublisher) watch(closed <-chan uint32) {
	for id := range closed {
		p.mu.Lock()
		shown := id != 0 && id == p.id
		if shown {
			p.id = 0
		}
		fn := p.onDismissed
		p.mu.Unlock()

		if !shown {
			continue
		}
		p.logger.Info("Notification closed by the server", zap.Uint32("id", id))
		// Outside p.mu: fn may wait on a caller that is inside Publish
		if fn != nil {
			fn()
		}
	}
}

// Publish shows markup, replacing the notification shown before
func (p *NotifyPublisher) Publish(ctx context.Context, markup string) error {
	content, err := parseTile(markup)
	if err != nil {
		return err
	}

	var summary, body string
	if len(content.Texts) > 0 {
		summary = content.Texts[0]
		// The body may be interpreted as markup by the server
		escaped := make([]string, 0, len(content.Texts)-1)
		for _, t := range content.Texts[1:] {
			escaped = append(escaped, html.EscapeString(t))
		}
		body = strings.Join(escaped, "\n")
	}

	hints := map[string]dbus.Variant{
		"resident":      dbus.MakeVariant(true),
		"transient":     dbus.MakeVariant(false),
		"urgency":       dbus.MakeVariant(urgencyLow),
		"category":      dbus.MakeVariant("x-tilesync.nowplaying"),
		"desktop-entry": dbus.MakeVariant(p.appName),
	}
	if content.Image != "" {
		hints["image-path"] = dbus.MakeVariant(content.Image)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.client.Notify(ctx, Notification{
		AppName:    p.appName,
		ReplacesID: p.id,
		Summary:    summary,
		Body:       body,
		Hints:      hints,
	})
	if err != nil {
		return fmt.Errorf("notification server rejected tile: %w", err)
	}

	p.id = id
	p.logger.Debug("Notification shown", zap.Uint32("id", id))
	return nil
}

// Clear closes the notification, if one is shown
func (p *NotifyPublisher) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id == 0 {
		return nil
	}
	if err := p.client.CloseNotification(ctx, p.id); err != nil {
		return fmt.Errorf("failed to close notification %d: %w", p.id, err)
	}

	p.logger.Debug("Notification closed", zap.Uint32("id", p.id))
	p.id = 0
	return nil
}

// Close releases the bus connection
func (p *NotifyPublisher) Close() error {
	return p.client.Close()
}
