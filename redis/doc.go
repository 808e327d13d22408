// Package redis backs the artifact index with Redis when it is enabled.
//
// Every saved transcript gets an Index entry whose TTL bounds how long its
// download link stays valid:
//
//	client, err := redis.New(redis.Config{Enabled: true, Addr: "localhost:6379"}, log)
//	index := redis.NewIndex[artifact.Record](client, "pilgi:artifacts")
//	err = index.Save(ctx, rec.Filename, &rec, 24*time.Hour)
package redis
