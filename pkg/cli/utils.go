package cli

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/keybase/dbus"
	"github.com/keybase/go-keychain/secretservice"
)

const (
	service        = "odi-scan"
	collection     = secretservice.DefaultCollection
	keychainPrefix = "keychain:"
)

type keychain struct {
	svc     *secretservice.SecretService
	session *secretservice.Session
}

// FillKeychainValues replaces every string field of args whose value is
// "keychain:<element>" with the secret stored for <element> under the
// odi-scan service. The secret service is only contacted when at least one
// field needs it.
func FillKeychainValues[T any](args *T) error {
	var kc *keychain
	v := reflect.ValueOf(args).Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.String {
			continue
		}
		element, ok := strings.CutPrefix(f.String(), keychainPrefix)
		if !ok {
			continue
		}
		if !f.CanSet() {
			return fmt.Errorf("set value for field %s", v.Type().Field(i).Name)
		}
		if kc == nil {
			var err error
			kc, err = openKeychain()
			if err != nil {
				return fmt.Errorf("init secret service: %v", err)
			}
		}
		secretValue, err := kc.lookup(element)
		if err != nil {
			return err
		}
		f.SetString(secretValue)
	}
	return nil
}

func (k *keychain) lookup(element string) (string, error) {
	items, err := k.svc.SearchCollection(collection, secretservice.Attributes{
		"service": service,
		"element": element,
	})
	if err != nil {
		return "", fmt.Errorf("search keychain element: %v", err)
	}
	if len(items) < 1 {
		return "", fmt.Errorf("keychain element %s not found", element)
	}
	if len(items) > 1 {
		return "", fmt.Errorf("found more than one keychain elements for %s", element)
	}
	secretValue, err := k.svc.GetSecret(items[0], *k.session)
	if err != nil {
		return "", fmt.Errorf("get value from keychain: %v", err)
	}
	return string(secretValue), nil
}

func openKeychain() (*keychain, error) {
	svc, err := secretservice.NewService()
	if err != nil {
		return nil, fmt.Errorf("create keychain service: %v", err)
	}
	if err := svc.Unlock([]dbus.ObjectPath{collection}); err != nil {
		return nil, fmt.Errorf("unlock keychain service: %v", err)
	}
	session, err := svc.OpenSession(secretservice.AuthenticationDHAES)
	if err != nil {
		return nil, fmt.Errorf("open session: %v", err)
	}
	if session == nil {
		return nil, fmt.Errorf("no session")
	}
	return &keychain{svc: svc, session: session}, nil
}
