// Package redis implements the URL repository on Redis.
//
// Each record is a hash under "<prefix>url:<code>". The sorted set
// "<prefix>urls" indexes codes by insertion sequence, drawn from the
// counter "<prefix>urls:seq". Mutations run as Lua scripts so the
// existence check and the write are a single atomic step. Creation time is
// read from the server clock inside the same script, so sequence order and
// creation order agree.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"

	goredis "github.com/redis/go-redis/v9"
)

var saveScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return false
end
local now = redis.call('TIME')
local created = now[1] .. string.format('%06d', tonumber(now[2]))
local seq = redis.call('INCR', KEYS[3])
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'short_code', ARGV[2], 'original_url', ARGV[3], 'access_count', 0, 'created_at', created)
redis.call('ZADD', KEYS[2], seq, ARGV[2])
return created
`)

var incrementScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'access_count', 1)
`)

var removeScript = goredis.NewScript(`
local n = redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
return n
`)

type urlRedis struct {
	ID          string `redis:"id"`
	ShortCode   string `redis:"short_code"`
	OriginalURL string `redis:"original_url"`
	AccessCount int64  `redis:"access_count"`
	CreatedAt   int64  `redis:"created_at"` // unix microseconds
}

func (u *urlRedis) toEntity() *entity.URL {
	return &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		URLStats: entity.URLStats{
			AccessCount: u.AccessCount,
		},
		CreatedAt: time.UnixMicro(u.CreatedAt).UTC(),
	}
}

type URLRepository struct {
	client goredis.UniversalClient
	prefix string
}

func NewURLRepository(client goredis.UniversalClient, prefix string) *URLRepository {
	return &URLRepository{
		client: client,
		prefix: prefix,
	}
}

func (r *URLRepository) urlKey(shortCode string) string {
	return r.prefix + "url:" + shortCode
}

func (r *URLRepository) indexKey() string {
	return r.prefix + "urls"
}

func (r *URLRepository) seqKey() string {
	return r.prefix + "urls:seq"
}

func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.redis.URLRepository.Save"

	url := urlRedis{
		ID:          uuid.NewString(),
		ShortCode:   shortCode,
		OriginalURL: originalURL,
	}

	keys := []string{r.urlKey(shortCode), r.indexKey(), r.seqKey()}

	created, err := saveScript.Run(ctx, r.client, keys, url.ID, url.ShortCode, url.OriginalURL).Text()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to save url hash: %w", op, err)
	}

	url.CreatedAt, err = strconv.ParseInt(created, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse creation time %q: %w", op, created, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.redis.URLRepository.RetrieveByShortCode"

	url, err := scanURL(r.client.HGetAll(ctx, r.urlKey(shortCode)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url hash: %w", op, err)
	}

	if url == nil {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) RetrieveAll(ctx context.Context) ([]*entity.URL, error) {
	const op = "adapter.repository.redis.URLRepository.RetrieveAll"

	codes, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read url index: %w", op, err)
	}

	cmds := make([]*goredis.MapStringStringCmd, 0, len(codes))

	_, err = r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, code := range codes {
			cmds = append(cmds, pipe.HGetAll(ctx, r.urlKey(code)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url hashes: %w", op, err)
	}

	urls := make([]*entity.URL, 0, len(cmds))
	for _, cmd := range cmds {
		url, err := scanURL(cmd)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to decode url hash: %w", op, err)
		}

		// Removed between the index read and the pipeline.
		if url == nil {
			continue
		}

		urls = append(urls, url.toEntity())
	}

	return urls, nil
}

func (r *URLRepository) IncrementAccessCount(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.redis.URLRepository.IncrementAccessCount"

	n, err := incrementScript.Run(ctx, r.client, []string{r.urlKey(shortCode)}).Int64()
	if err != nil {
		return fmt.Errorf("%s: failed to increment access count: %w", op, err)
	}

	if n < 0 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.redis.URLRepository.Remove"

	n, err := removeScript.Run(ctx, r.client, []string{r.urlKey(shortCode), r.indexKey()}, shortCode).Int64()
	if err != nil {
		return fmt.Errorf("%s: failed to delete url hash: %w", op, err)
	}

	if n != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}

// scanURL decodes an HGETALL reply, returning nil for a missing key.
func scanURL(cmd *goredis.MapStringStringCmd) (*urlRedis, error) {
	fields, err := cmd.Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, nil
	}

	var url urlRedis
	if err := cmd.Scan(&url); err != nil {
		return nil, err
	}

	return &url, nil
}
