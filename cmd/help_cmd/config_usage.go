package help_cmd

import (
	L "mediavault/logger"
)

const configUsageStr string = `
CONFIGURATION
    Configuration file is a JSON file used for storing store credentials
    and preferences. You could have different config.json files for
    different libraries.

    When you first run 'mediavault serve' or 'mediavault init', a default
    config will be created for you at '~/.config/mediavault/config.json',
    and you are supposed to modify this configuration to add credentials.

SAMPLE CONFIG

        {
            "database_path": "mediavault.db",
            "data_store": {
                "provider": "webdav",
                "webdav": {
                    "url": "https://localhost:8443/dav/media",
                    "presigned_url": "https://localhost:8443/secure/media",
                    "username": "mediavault",
                    "password": "YOUR_PASSWORD",
                    "secret_key": "YOUR_SECURE_LINK_SECRET",
                    "verify_ssl": true
                }
            },
            "cache_store": {
                "provider": "webdav",
                "webdav": {
                    "url": "https://localhost:8443/dav/cache",
                    "presigned_url": "https://localhost:8443/secure/cache",
                    "username": "mediavault",
                    "password": "YOUR_PASSWORD",
                    "secret_key": "YOUR_SECURE_LINK_SECRET",
                    "verify_ssl": true
                }
            },
            "chunk_byte_size": 10485760,
            "presign_expiry_seconds": 25200,
            "thumbnail": {
                "width_pixels": 400,
                "max_concurrent_tasks": 5,
                "task_timeout_seconds": 30
            },
            "server": {
                "host": "127.0.0.1",
                "port": 8000
            },
            "log_level": "info",
            "log_color_mode": "auto"
        }

OPTIONS
    database_path
        Path to the SQLite metadata log. Created on first run.

    data_store, cache_store
        Where the media files and the generated thumbnails live.
        The two stores are independent; they may point at different
        servers or different prefixes of the same server.
        Supported values for provider: webdav, s3, memory

    data_store.webdav.url
        Base URL of the WebDAV collection.

    data_store.webdav.presigned_url
        Base URL nginx serves secure_link reads from.

    data_store.webdav.secret_key
        Shared secret of the nginx secure_link block. Tokens are
        md5(expires + uri + " " + secret), urlsafe base64.

    data_store.s3.endpoint
        Optional custom endpoint for S3-compatible servers (MinIO).
        Leave empty for AWS.

    data_store.s3.access_key, data_store.s3.secret_key
        Credentials with read/write access to the bucket.
        These credentials are private, and should not be exposed.

    chunk_byte_size
        Upload stream chunk size in bytes.

    presign_expiry_seconds
        How long issued shareable URLs stay valid.

    thumbnail.width_pixels
        Target thumbnail width. Height follows the aspect ratio.

    thumbnail.max_concurrent_tasks
        Upper bound on concurrent thumbnail generations; bounds peak
        memory and outbound bandwidth.

    thumbnail.task_timeout_seconds
        Deadline for one generation attempt, covering the source fetch.

    server.host, server.port
        HTTP API bind address.
`

func ConfigUsage() string {
	return configUsageStr
}

func ConfigPrintUsage() {
	L.Print(configUsageStr)
}
