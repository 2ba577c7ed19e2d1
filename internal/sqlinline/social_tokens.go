package sqlinline

const QSelectSocialToken = `--sql 3e4b0499-cac1-4024-bd31-88852b75674c
select user_id, platform, access_token, coalesce(refresh_token, ''), expires_at,
       coalesce(platform_user_id, ''), coalesce(username, ''), last_used_at, created_at, updated_at
from social_media_tokens
where user_id = $1::uuid
  and platform = $2::text
limit 1;
`

const QUpsertSocialToken = `--sql a1fdd3a6-9076-4343-8b86-bfdf4ef4612e
insert into social_media_tokens (user_id, platform, access_token, refresh_token, expires_at, platform_user_id, username, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, nullif($4::text, ''), $5::timestamptz, $6::text, nullif($7::text, ''), now(), now())
on conflict (user_id, platform) do update set
    access_token = excluded.access_token,
    refresh_token = coalesce(excluded.refresh_token, social_media_tokens.refresh_token),
    expires_at = excluded.expires_at,
    platform_user_id = excluded.platform_user_id,
    username = coalesce(excluded.username, social_media_tokens.username),
    refresh_claimed_until = null,
    updated_at = now();
`

const QDeleteSocialToken = `--sql a2d0b2de-e5d1-44f8-b1c0-350a1688f219
delete from social_media_tokens
where user_id = $1::uuid
  and platform = $2::text;
`

const QListSocialTokensByUser = `--sql 93fc697b-862e-4c24-b455-b1626fd760e2
select user_id, platform, access_token, coalesce(refresh_token, ''), expires_at,
       coalesce(platform_user_id, ''), coalesce(username, ''), last_used_at, created_at, updated_at
from social_media_tokens
where user_id = $1::uuid
order by platform asc;
`

const QTouchSocialTokenUsage = `--sql 5c80329e-e8e0-4aa5-a4f0-cdad5499b92c
update social_media_tokens
set last_used_at = now()
where user_id = $1::uuid
  and platform = $2::text;
`
