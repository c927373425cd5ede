// Package bluez publishes the bridge's SDP record through the BlueZ D-Bus API.
package bluez

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

const (
	BluezDBusService    = "org.bluez"
	BluezRootPath       = "/org/bluez"
	BluezProfileManager = "org.bluez.ProfileManager1"
	BluezProfile        = "org.bluez.Profile1"
	BluezAdapter        = "org.bluez.Adapter1"
	propertiesInterface = "org.freedesktop.DBus.Properties"
	profilePathPrefix   = "/org/bluebridge/profile/"
	unregisterTimeout   = 5 * time.Second
)

// systemBus is the part of *dbus.Conn the advertiser uses
type systemBus interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// Advertiser registers the bridge as a BlueZ profile with an explicit
// service record. The RFCOMM socket itself is owned by the transport, so
// the profile carries no Channel option and BlueZ opens no listener of its own.
type Advertiser struct {
	bus    systemBus
	logger port.Logger
}

// NewAdvertiser connects to the system bus
func NewAdvertiser(logger port.Logger) (*Advertiser, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system DBus: %w", err)
	}
	return newAdvertiser(conn, logger), nil
}

func newAdvertiser(bus systemBus, logger port.Logger) *Advertiser {
	return &Advertiser{
		bus:    bus,
		logger: logger,
	}
}

// Advertise exports the profile object and registers it with the profile manager
func (a *Advertiser) Advertise(ctx context.Context, ad model.ServiceAdvertisement) (port.Registration, error) {
	record, err := ServiceRecord(ad)
	if err != nil {
		return nil, &model.TransportError{Op: "advertise", Err: err}
	}

	path := ProfilePath(ad.ServiceID)
	if err := a.bus.Export(&profile{logger: a.logger}, path, BluezProfile); err != nil {
		return nil, &model.TransportError{Op: "advertise", Err: fmt.Errorf("failed to export profile: %w", err)}
	}

	manager := a.bus.Object(BluezDBusService, BluezRootPath)
	call := manager.CallWithContext(ctx, BluezProfileManager+".RegisterProfile", 0,
		path, ad.ServiceID.String(), ProfileOptions(ad, record))
	if call.Err != nil {
		a.bus.Export(nil, path, BluezProfile)
		return nil, &model.TransportError{Op: "advertise", Err: fmt.Errorf("failed to register profile: %w", call.Err)}
	}

	reg := &registration{
		bus:     a.bus,
		path:    path,
		adapter: ad.Adapter,
		logger:  a.logger,
	}
	if ad.Discoverable && ad.Adapter != "" {
		if err := a.setDiscoverable(ctx, ad.Adapter, true); err != nil {
			a.logger.Warn("Failed to make adapter %s discoverable: %v", ad.Adapter, err)
		} else {
			reg.discoverable = true
		}
	}

	a.logger.Info("Service %q (%s) advertised on %s", ad.ServiceName, ad.ServiceID, ad.Endpoint)
	return reg, nil
}

// AdapterAddress returns the BD_ADDR of adapter (for example "hci0")
func (a *Advertiser) AdapterAddress(adapter string) (string, error) {
	obj := a.bus.Object(BluezDBusService, adapterPath(adapter))
	v, err := obj.GetProperty(BluezAdapter + ".Address")
	if err != nil {
		return "", fmt.Errorf("failed to read address of adapter %s: %w", adapter, err)
	}
	address, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected address type %T for adapter %s", v.Value(), adapter)
	}
	return address, nil
}

func (a *Advertiser) setDiscoverable(ctx context.Context, adapter string, on bool) error {
	return setDiscoverable(ctx, a.bus, adapter, on)
}

func setDiscoverable(ctx context.Context, bus systemBus, adapter string, on bool) error {
	obj := bus.Object(BluezDBusService, adapterPath(adapter))
	call := obj.CallWithContext(ctx, propertiesInterface+".Set", 0,
		BluezAdapter, "Discoverable", dbus.MakeVariant(on))
	return call.Err
}

func adapterPath(adapter string) dbus.ObjectPath {
	return dbus.ObjectPath(BluezRootPath + "/" + adapter)
}

// ProfilePath returns the object path the profile for serviceID is exported at
func ProfilePath(serviceID uuid.UUID) dbus.ObjectPath {
	return dbus.ObjectPath(profilePathPrefix + strings.ReplaceAll(serviceID.String(), "-", "_"))
}

// ProfileOptions builds the RegisterProfile options dictionary
func ProfileOptions(ad model.ServiceAdvertisement, record string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Name":                  dbus.MakeVariant(ad.ServiceName),
		"Role":                  dbus.MakeVariant("server"),
		"RequireAuthentication": dbus.MakeVariant(false),
		"RequireAuthorization":  dbus.MakeVariant(false),
		"AutoConnect":           dbus.MakeVariant(false),
		"ServiceRecord":         dbus.MakeVariant(record),
	}
}

// registration is a registered profile
type registration struct {
	bus          systemBus
	path         dbus.ObjectPath
	adapter      string
	discoverable bool
	logger       port.Logger

	once sync.Once
	err  error
}

// Unregister withdraws the profile once; later calls return the first result
func (r *registration) Unregister() error {
	r.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), unregisterTimeout)
		defer cancel()

		manager := r.bus.Object(BluezDBusService, BluezRootPath)
		if call := manager.CallWithContext(ctx, BluezProfileManager+".UnregisterProfile", 0, r.path); call.Err != nil {
			r.err = fmt.Errorf("failed to unregister profile: %w", call.Err)
		}
		if err := r.bus.Export(nil, r.path, BluezProfile); err != nil && r.err == nil {
			r.err = fmt.Errorf("failed to unexport profile: %w", err)
		}
		if r.discoverable {
			if err := setDiscoverable(ctx, r.bus, r.adapter, false); err != nil {
				r.logger.Warn("Failed to restore discoverable on %s: %v", r.adapter, err)
			}
		}
		r.logger.Info("Service advertisement withdrawn")
	})
	return r.err
}

// profile is the org.bluez.Profile1 object BlueZ calls back into
type profile struct {
	logger port.Logger
}

// Release is called when BlueZ drops the profile
func (p *profile) Release() *dbus.Error {
	p.logger.Debug("Profile released by BlueZ")
	return nil
}

// NewConnection is only reached if BlueZ accepted a connection itself. The
// bridge serves peers from its own socket, so the descriptor is closed.
func (p *profile) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, props map[string]dbus.Variant) *dbus.Error {
	p.logger.Warn("Unexpected profile connection from %s, closing", device)
	os.NewFile(uintptr(fd), "profile-connection").Close()
	return nil
}

// RequestDisconnection is a no-op
func (p *profile) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	p.logger.Debug("Disconnection requested for %s", device)
	return nil
}

// Ensure Advertiser implements port.Advertiser
var _ port.Advertiser = (*Advertiser)(nil)
