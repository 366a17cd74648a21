package redis

import (
	"fmt"

	"github.com/mcoot/ultratic/internal/model"
)

// Key prefix for all ledger data
const keyPrefix = "ultratic"

// userKey returns the Redis key for a User document
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%d", keyPrefix, id)
}

// gameKey returns the Redis key for a Game document
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%d", keyPrefix, id)
}

// movesKey returns the Redis key for the LIST of moves in a game
func movesKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:moves:%d", keyPrefix, gameID)
}

// gamesIndexKey returns the Redis key for the ZSET of all games, scored by
// creation time in unix millis
func gamesIndexKey() string {
	return fmt.Sprintf("%s:idx:games", keyPrefix)
}

// sequenceKey returns the Redis key for an ID counter
func sequenceKey(entity string) string {
	return fmt.Sprintf("%s:seq:%s", keyPrefix, entity)
}

// gameMember encodes a game ID as a ZSET member. Zero padding makes the
// lexicographic tie-break between equal scores match numeric order.
func gameMember(id model.GameID) string {
	return fmt.Sprintf("%019d", id)
}
