package redis

import backend "github.com/redis/go-redis/v9"

// guardScript evaluates a ports.Filter against the record hash in KEYS[1].
//
//	ARGV[1] lock token to match ("" = any)
//	ARGV[2] "1" to require lock_held = 0
//	ARGV[3] expires must be below this unix-ms value ("" = any)
const guardScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
if ARGV[1] ~= "" and redis.call("HGET", KEYS[1], "lock_token") ~= ARGV[1] then
	return 0
end
if ARGV[2] == "1" and redis.call("HGET", KEYS[1], "lock_held") == "1" then
	return 0
end
if ARGV[3] ~= "" then
	local exp = tonumber(redis.call("HGET", KEYS[1], "expires"))
	if exp == nil or exp >= tonumber(ARGV[3]) then
		return 0
	end
end
`

// updateScript applies field/value pairs to a matching record and keeps the
// expiry index in KEYS[2] in sync.
//
//	ARGV[4] new expires in unix ms ("" = unchanged)
//	ARGV[5] retention in ms after expiry before Redis drops the key ("0" = never)
//	ARGV[6..] field/value pairs for HSET
var updateScript = backend.NewScript(guardScript + `
if #ARGV > 5 then
	redis.call("HSET", KEYS[1], unpack(ARGV, 6))
end
if ARGV[4] ~= "" then
	redis.call("ZADD", KEYS[2], ARGV[4], KEYS[1])
	if tonumber(ARGV[5]) > 0 then
		redis.call("PEXPIREAT", KEYS[1], tonumber(ARGV[4]) + tonumber(ARGV[5]))
	end
end
return 1
`)

// deleteScript removes a matching record and its index entry.
var deleteScript = backend.NewScript(guardScript + `
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], KEYS[1])
return 1
`)

// sweepScript removes every record in the index KEYS[1] whose expires is below ARGV[1].
// The hash is re-checked so a record refreshed after indexing survives.
var sweepScript = backend.NewScript(`
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
local n = 0
for _, key in ipairs(members) do
	local exp = tonumber(redis.call("HGET", key, "expires"))
	if exp == nil or exp < tonumber(ARGV[1]) then
		n = n + redis.call("DEL", key)
		redis.call("ZREM", KEYS[1], key)
	end
end
return n
`)
