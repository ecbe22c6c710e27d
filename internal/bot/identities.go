package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SentinelOpponent is the opponent id clients send to request a bot match.
const SentinelOpponent = "bot"

// botIDPrefix marks generated bot ids that do not belong to a provisioned account.
const botIDPrefix = "bot-"

type BotIdentity struct {
	DeviceID    string `json:"device_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Difficulty  string `json:"difficulty"`
}

// AccountProvisioner is the part of the Nakama module needed to create bot accounts.
type AccountProvisioner interface {
	AuthenticateDevice(ctx context.Context, id, username string, create bool) (string, string, bool, error)
	AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error
}

// Logger is the printf-style logger used during provisioning.
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

var (
	mu            sync.RWMutex
	botIdentities []BotIdentity
	botConfigMap  = map[string]BotIdentity{}
	loadOnce      sync.Once
	provisionOnce sync.Once
	loadErr       error
)

// LoadIdentities loads the bot profiles from the given path.
func LoadIdentities(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read bot identities: %w", err)
			return
		}

		var identities []BotIdentity
		if err := json.Unmarshal(data, &identities); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal bot identities: %w", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		botIdentities = identities
		for _, identity := range identities {
			if identity.UserID != "" {
				botConfigMap[identity.UserID] = identity
			}
		}
	})
	return loadErr
}

// ProvisionBots ensures that every identity with a device id has a backing account.
func ProvisionBots(ctx context.Context, nk AccountProvisioner, logger Logger) {
	provisionOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		for i := range botIdentities {
			identity := &botIdentities[i]
			if identity.DeviceID == "" {
				continue
			}

			userID, username, _, err := nk.AuthenticateDevice(ctx, identity.DeviceID, identity.Username, true)
			if err != nil {
				logger.Error("ProvisionBots: Failed to authenticate bot %s: %v", identity.Username, err)
				continue
			}
			identity.UserID = userID
			identity.Username = username

			metadata := map[string]interface{}{
				"is_bot":     true,
				"difficulty": identity.Difficulty,
			}
			if err := nk.AccountUpdateId(ctx, userID, identity.Username, metadata, identity.DisplayName, "", "", "", ""); err != nil {
				logger.Warn("ProvisionBots: Failed to update bot account %s: %v", userID, err)
			}

			botConfigMap[userID] = *identity
			logger.Info("ProvisionBots: Bot %s (%s) is ready.", identity.DisplayName, userID)
		}
	})
}

// AssignLocalIDs gives every loaded identity without an account a generated bot id,
// for servers that run without Nakama to provision them. It returns how many were assigned.
func AssignLocalIDs() int {
	mu.Lock()
	defer mu.Unlock()
	assigned := 0
	for i := range botIdentities {
		identity := &botIdentities[i]
		if identity.UserID != "" {
			continue
		}
		identity.UserID = NewID()
		botConfigMap[identity.UserID] = *identity
		assigned++
	}
	return assigned
}

// NewID generates an id for a bot that has no provisioned account.
func NewID() string {
	return botIDPrefix + uuid.NewString()
}

// PickIdentity chooses an opponent from the provisioned pool, or a generated one when the pool is empty.
func PickIdentity(rng *rand.Rand) BotIdentity {
	mu.RLock()
	defer mu.RUnlock()
	ready := make([]BotIdentity, 0, len(botConfigMap))
	for _, identity := range botIdentities {
		if identity.UserID != "" {
			ready = append(ready, identity)
		}
	}
	if len(ready) == 0 {
		id := NewID()
		return BotIdentity{UserID: id, DisplayName: "AI " + id[len(botIDPrefix):len(botIDPrefix)+4]}
	}
	if rng == nil {
		return ready[0]
	}
	return ready[rng.Intn(len(ready))]
}

// GetBotConfig returns the full identity configuration for a given bot ID.
func GetBotConfig(userID string) (BotIdentity, bool) {
	mu.RLock()
	defer mu.RUnlock()
	identity, ok := botConfigMap[userID]
	return identity, ok
}

// GetBotDisplayName returns the display name for a bot ID, or an empty string if not a bot.
func GetBotDisplayName(userID string) string {
	identity, ok := GetBotConfig(userID)
	if !ok {
		return ""
	}
	if identity.DisplayName == "" {
		return identity.Username
	}
	return identity.DisplayName
}

// IsBot reports whether the given user ID belongs to the bot pool or was generated by NewID.
func IsBot(userID string) bool {
	if strings.HasPrefix(userID, botIDPrefix) {
		return true
	}
	_, ok := GetBotConfig(userID)
	return ok
}
