package sqlinline

// QSelectIntegrationToken returns the stored API token for a provider.
const QSelectIntegrationToken = `--sql 5c0e7a93-1d2b-4f6e-9a8c-3b7d5f1e2a64
select token
from integration_tokens
where provider = $1::text
  and token <> '';
`

// QUpsertIntegrationToken stores or rotates a provider token; properties are
// merged so earlier labels survive a rotation.
const QUpsertIntegrationToken = `--sql a4d2f6b8-9e1c-4a3f-8b5d-0c7e2f4a6b91
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
