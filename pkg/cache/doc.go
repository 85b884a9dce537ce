/*
Package cache persists remote directory listings in a small bbolt
database, so restarting the daemon does not re-crawl the planet server's
directory tree.
*/
package cache
