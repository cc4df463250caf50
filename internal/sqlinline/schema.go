package sqlinline

// Schema is applied by cmd/migrate. Statements are idempotent.
const Schema = `--sql e2b4d6f8-0a1c-4e3b-8d5f-7a9c1b3d5e70
create extension if not exists pgcrypto;

create table if not exists integration_tokens (
    id uuid primary key default gen_random_uuid(),
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists image_tasks (
    id uuid primary key,
    user_id text not null default '',
    prompt text not null,
    model text not null,
    aspect_ratio text not null,
    num_outputs int not null check (num_outputs in (1, 2, 4)),
    provider text not null,
    provider_model_id text not null,
    status text not null check (status in ('pending', 'processing', 'completed', 'failed')),
    error_message text,
    processing_time_ms bigint,
    credits_used numeric(10, 1),
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create index if not exists image_tasks_user_created_idx on image_tasks (user_id, created_at desc);

create table if not exists image_task_inputs (
    id uuid primary key,
    task_id uuid not null references image_tasks (id) on delete cascade,
    storage_key text not null,
    file_name text not null,
    file_size bigint not null,
    file_type text not null,
    ordinal int not null,
    created_at timestamptz not null default now(),
    unique (task_id, ordinal)
);

create table if not exists image_task_outputs (
    id uuid primary key,
    task_id uuid not null references image_tasks (id) on delete cascade,
    storage_key text not null,
    ordinal int not null,
    created_at timestamptz not null default now(),
    unique (task_id, ordinal)
);

create table if not exists image_task_failures (
    id bigserial primary key,
    task_id uuid not null references image_tasks (id) on delete cascade,
    ordinal int not null,
    reason text not null,
    created_at timestamptz not null default now()
);
`
